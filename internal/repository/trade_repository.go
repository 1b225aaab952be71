package repository

import (
	"database/sql"
	"errors"
	"time"

	"derivbot/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create создает запись о закрытой сделке
func (r *TradeRepository) Create(rec *models.TradeRecord) error {
	query := `
		INSERT INTO trades (account_id, contract_id, symbol, direction, stake, entry_price, realized_pnl, outcome, closure_type, close_reason, unconfirmed, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	err := r.db.QueryRow(
		query,
		rec.AccountID,
		rec.ContractID,
		rec.Symbol,
		rec.Direction,
		rec.Stake,
		rec.EntryPrice,
		rec.RealizedPnl,
		rec.Outcome,
		rec.ClosureType,
		rec.CloseReason,
		rec.Unconfirmed,
		rec.OpenedAt,
		rec.ClosedAt,
	).Scan(&rec.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, account_id, contract_id, symbol, direction, stake, entry_price, realized_pnl, outcome, closure_type, close_reason, unconfirmed, opened_at, closed_at
		FROM trades
		WHERE id = $1`

	rec := &models.TradeRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.ContractID,
		&rec.Symbol,
		&rec.Direction,
		&rec.Stake,
		&rec.EntryPrice,
		&rec.RealizedPnl,
		&rec.Outcome,
		&rec.ClosureType,
		&rec.CloseReason,
		&rec.Unconfirmed,
		&rec.OpenedAt,
		&rec.ClosedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return rec, nil
}

// GetByContractID возвращает сделку по идентификатору контракта брокера
func (r *TradeRepository) GetByContractID(contractID string) (*models.TradeRecord, error) {
	query := `
		SELECT id, account_id, contract_id, symbol, direction, stake, entry_price, realized_pnl, outcome, closure_type, close_reason, unconfirmed, opened_at, closed_at
		FROM trades
		WHERE contract_id = $1`

	rec := &models.TradeRecord{}
	err := r.db.QueryRow(query, contractID).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.ContractID,
		&rec.Symbol,
		&rec.Direction,
		&rec.Stake,
		&rec.EntryPrice,
		&rec.RealizedPnl,
		&rec.Outcome,
		&rec.ClosureType,
		&rec.CloseReason,
		&rec.Unconfirmed,
		&rec.OpenedAt,
		&rec.ClosedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return rec, nil
}

// GetRecent возвращает последние N сделок аккаунта
func (r *TradeRepository) GetRecent(accountID string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, account_id, contract_id, symbol, direction, stake, entry_price, realized_pnl, outcome, closure_type, close_reason, unconfirmed, opened_at, closed_at
		FROM trades
		WHERE account_id = $1
		ORDER BY opened_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetUnconfirmed возвращает сделки с консервативным fallback расчётом,
// требующие ручной сверки с брокером
func (r *TradeRepository) GetUnconfirmed(accountID string) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, account_id, contract_id, symbol, direction, stake, entry_price, realized_pnl, outcome, closure_type, close_reason, unconfirmed, opened_at, closed_at
		FROM trades
		WHERE account_id = $1 AND unconfirmed = TRUE
		ORDER BY opened_at DESC`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// MarkConfirmed снимает флаг unconfirmed после ручной сверки,
// при необходимости корректируя PnL и итог
func (r *TradeRepository) MarkConfirmed(id int, realizedPnl float64, outcome string) error {
	query := `
		UPDATE trades
		SET unconfirmed = FALSE, realized_pnl = $1, outcome = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, realizedPnl, outcome, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// GetByTimeRange возвращает сделки аккаунта за период
func (r *TradeRepository) GetByTimeRange(accountID string, from, to time.Time) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, account_id, contract_id, symbol, direction, stake, entry_price, realized_pnl, outcome, closure_type, close_reason, unconfirmed, opened_at, closed_at
		FROM trades
		WHERE account_id = $1 AND opened_at >= $2 AND opened_at <= $3
		ORDER BY opened_at DESC`

	rows, err := r.db.Query(query, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// DailyStats возвращает дневные сводки аккаунта за последние N дней
func (r *TradeRepository) DailyStats(accountID string, days int) ([]*models.DailyStats, error) {
	query := `
		SELECT date_trunc('day', opened_at) AS day,
		       COUNT(*) AS trades,
		       COALESCE(SUM(realized_pnl), 0) AS pnl,
		       COUNT(*) FILTER (WHERE outcome = 'WIN') AS wins,
		       COUNT(*) FILTER (WHERE outcome = 'LOSS') AS losses
		FROM trades
		WHERE account_id = $1 AND opened_at >= NOW() - ($2 || ' days')::interval
		GROUP BY day
		ORDER BY day DESC`

	rows, err := r.db.Query(query, accountID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*models.DailyStats
	for rows.Next() {
		s := &models.DailyStats{}
		if err := rows.Scan(&s.Day, &s.Trades, &s.Pnl, &s.Wins, &s.Losses); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// Count возвращает общее количество сделок аккаунта
func (r *TradeRepository) Count(accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE account_id = $1`

	var count int
	err := r.db.QueryRow(query, accountID).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// DeleteOlderThan удаляет сделки старше указанной даты
func (r *TradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM trades WHERE opened_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// scanTrades вычитывает все строки результата в записи сделок
func scanTrades(rows *sql.Rows) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	for rows.Next() {
		rec := &models.TradeRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.AccountID,
			&rec.ContractID,
			&rec.Symbol,
			&rec.Direction,
			&rec.Stake,
			&rec.EntryPrice,
			&rec.RealizedPnl,
			&rec.Outcome,
			&rec.ClosureType,
			&rec.CloseReason,
			&rec.Unconfirmed,
			&rec.OpenedAt,
			&rec.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
