package engine

import (
	"errors"
	"slices"
	"testing"

	"docflow/internal/domain"
)

func TestTransitionTables(t *testing.T) {
	tables := []struct {
		name   string
		ensure func(from, to string) error
		allow  map[string][]string
		states []string
	}{
		{
			name:   "inbound",
			ensure: ensureInboundTransition,
			allow: map[string][]string{
				domain.StatusTiepNhan: {domain.StatusDangKy},
				domain.StatusDangKy:   {domain.StatusPhanCong, domain.StatusThuHoi},
				domain.StatusPhanCong: {domain.StatusDangXuLy, domain.StatusThuHoi},
				domain.StatusDangXuLy: {domain.StatusHoanTat, domain.StatusThuHoi},
				domain.StatusHoanTat:  {domain.StatusLuuTru},
			},
			states: []string{domain.StatusTiepNhan, domain.StatusDangKy, domain.StatusPhanCong, domain.StatusDangXuLy, domain.StatusHoanTat, domain.StatusLuuTru, domain.StatusThuHoi},
		},
		{
			name:   "outbound",
			ensure: ensureOutboundTransition,
			allow: map[string][]string{
				domain.StatusDuThao:     {domain.StatusTrinhDuyet},
				domain.StatusTraLai:     {domain.StatusTrinhDuyet},
				domain.StatusTrinhDuyet: {domain.StatusPheDuyet, domain.StatusTraLai},
				domain.StatusPheDuyet:   {domain.StatusKySo},
				domain.StatusKySo:       {domain.StatusPhatHanh},
				domain.StatusPhatHanh:   {domain.StatusLuuTru, domain.StatusHuyPhatHanh},
			},
			states: []string{domain.StatusDuThao, domain.StatusTrinhDuyet, domain.StatusTraLai, domain.StatusPheDuyet, domain.StatusKySo, domain.StatusPhatHanh, domain.StatusLuuTru, domain.StatusHuyPhatHanh},
		},
		{
			name:   "case",
			ensure: ensureCaseTransition,
			allow: map[string][]string{
				domain.StatusMoiTao:       {domain.StatusChoPhanCong},
				domain.StatusChoPhanCong:  {domain.StatusDaPhanCong},
				domain.StatusDaPhanCong:   {domain.StatusDangThucHien},
				domain.StatusDangThucHien: {domain.StatusTamDung, domain.StatusChoDuyetDong},
				domain.StatusTamDung:      {domain.StatusDangThucHien},
				domain.StatusChoDuyetDong: {domain.StatusDong},
				domain.StatusDong:         {domain.StatusLuuTru},
			},
			states: []string{domain.StatusMoiTao, domain.StatusChoPhanCong, domain.StatusDaPhanCong, domain.StatusDangThucHien, domain.StatusTamDung, domain.StatusChoDuyetDong, domain.StatusDong, domain.StatusLuuTru},
		},
		{
			name:   "case reassign",
			ensure: ensureCaseReassign,
			allow: map[string][]string{
				domain.StatusDaPhanCong:   {domain.StatusDaPhanCong},
				domain.StatusDangThucHien: {domain.StatusDaPhanCong},
				domain.StatusTamDung:      {domain.StatusDaPhanCong},
			},
			states: []string{domain.StatusMoiTao, domain.StatusChoPhanCong, domain.StatusDaPhanCong, domain.StatusDangThucHien, domain.StatusTamDung, domain.StatusChoDuyetDong, domain.StatusDong, domain.StatusLuuTru},
		},
	}
	for _, tc := range tables {
		t.Run(tc.name, func(t *testing.T) {
			for _, from := range tc.states {
				for _, to := range tc.states {
					want := slices.Contains(tc.allow[from], to)
					err := tc.ensure(from, to)
					if want && err != nil {
						t.Fatalf("%s -> %s should be allowed: %v", from, to, err)
					}
					if !want && !errors.Is(err, domain.ErrInvalidTransition) {
						t.Fatalf("%s -> %s should be rejected, got %v", from, to, err)
					}
				}
			}
		})
	}
}
