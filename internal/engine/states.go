package engine

import "docflow/internal/domain"

func ensureInboundTransition(from, to string) error {
	switch from {
	case domain.StatusTiepNhan:
		if to == domain.StatusDangKy {
			return nil
		}
	case domain.StatusDangKy:
		if to == domain.StatusPhanCong || to == domain.StatusThuHoi {
			return nil
		}
	case domain.StatusPhanCong:
		if to == domain.StatusDangXuLy || to == domain.StatusThuHoi {
			return nil
		}
	case domain.StatusDangXuLy:
		if to == domain.StatusHoanTat || to == domain.StatusThuHoi {
			return nil
		}
	case domain.StatusHoanTat:
		if to == domain.StatusLuuTru {
			return nil
		}
	}
	return domain.InvalidTransition(from, to)
}

func ensureOutboundTransition(from, to string) error {
	switch from {
	case domain.StatusDuThao, domain.StatusTraLai:
		if to == domain.StatusTrinhDuyet {
			return nil
		}
	case domain.StatusTrinhDuyet:
		if to == domain.StatusPheDuyet || to == domain.StatusTraLai {
			return nil
		}
	case domain.StatusPheDuyet:
		if to == domain.StatusKySo {
			return nil
		}
	case domain.StatusKySo:
		if to == domain.StatusPhatHanh {
			return nil
		}
	case domain.StatusPhatHanh:
		if to == domain.StatusLuuTru || to == domain.StatusHuyPhatHanh {
			return nil
		}
	}
	return domain.InvalidTransition(from, to)
}

// ensureCaseTransition covers the forward path. Reassignment is checked separately.
func ensureCaseTransition(from, to string) error {
	switch from {
	case domain.StatusMoiTao:
		if to == domain.StatusChoPhanCong {
			return nil
		}
	case domain.StatusChoPhanCong:
		if to == domain.StatusDaPhanCong {
			return nil
		}
	case domain.StatusDaPhanCong:
		if to == domain.StatusDangThucHien {
			return nil
		}
	case domain.StatusDangThucHien:
		if to == domain.StatusTamDung || to == domain.StatusChoDuyetDong {
			return nil
		}
	case domain.StatusTamDung:
		if to == domain.StatusDangThucHien {
			return nil
		}
	case domain.StatusChoDuyetDong:
		if to == domain.StatusDong {
			return nil
		}
	case domain.StatusDong:
		if to == domain.StatusLuuTru {
			return nil
		}
	}
	return domain.InvalidTransition(from, to)
}

func ensureCaseReassign(from, to string) error {
	switch from {
	case domain.StatusDaPhanCong, domain.StatusDangThucHien, domain.StatusTamDung:
		if to == domain.StatusDaPhanCong {
			return nil
		}
	}
	return domain.InvalidTransition(from, to)
}
