package repo

import (
	"context"
	"database/sql"
)

// GetSetting returns the raw value of a system setting.
func (r Repo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT value FROM system_settings WHERE key=?`), key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r Repo) PutSetting(ctx context.Context, key, value, now string) error {
	_, err := r.DB.ExecContext(ctx, r.q(`INSERT INTO system_settings(key,value,updated_at) VALUES (?,?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`), key, value, now)
	return err
}

// SeedSettingTx writes key only when it is not set yet.
func (r Repo) SeedSettingTx(ctx context.Context, tx *sql.Tx, key, value, now string) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO system_settings(key,value,updated_at) VALUES (?,?,?) ON CONFLICT(key) DO NOTHING`), key, value, now)
	return err
}
