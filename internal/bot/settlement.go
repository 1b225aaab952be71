package bot

import (
	"derivbot/internal/broker"
	"derivbot/internal/models"
)

// ResolveSettlement нормализует терминальный статус от брокера
// в канонический итог.
//
// botInitiated = true когда закрытие инициировал сам бот (TP/SL sell,
// правило выхода); иначе продажа классифицируется как manual либо expiry.
//
// Возвращает (nil, false) для нетерминальных статусов и для сообщений
// по чужому contract_id - такие записи отбрасываются, а не применяются
// к отслеживаемой позиции.
func ResolveSettlement(p *models.Position, st *broker.ContractStatus, botInitiated bool) (*models.SettlementResult, bool) {
	if st == nil || st.ContractID != p.ContractID {
		return nil, false
	}

	if !st.Terminal() {
		return nil, false
	}

	profit := st.Profit
	if profit == 0 && st.SellPrice != 0 && st.BuyPrice != 0 {
		profit = st.SellPrice - st.BuyPrice
	}

	closureType := models.ClosureManual
	switch {
	case botInitiated:
		closureType = models.ClosureTarget
	case st.IsExpired && !st.IsSold:
		closureType = models.ClosureExpiry
	}

	return &models.SettlementResult{
		Status:      models.OutcomeFromPnl(profit),
		RealizedPnl: profit,
		ClosureType: closureType,
	}, true
}

// ResolveTimeout - консервативный fallback, когда исход подтвердить
// не удалось (таймаут подписки, обрыв соединения, битые данные).
//
// Успех никогда не предполагается молча: фиксируется убыток в размере
// ставки, итог помечается неподтверждённым и требует ручной сверки.
func ResolveTimeout(p *models.Position) *models.SettlementResult {
	return &models.SettlementResult{
		Status:      models.OutcomeLoss,
		RealizedPnl: -p.Stake,
		ClosureType: models.ClosureTimeout,
		Unconfirmed: true,
	}
}

// ResolveCancellation - итог отмены в окне двухфазного режима.
// Убыток равен комиссии отмены, refund возвращает остаток ставки.
func ResolveCancellation(p *models.Position, refund, fee float64) *models.SettlementResult {
	pnl := -fee
	if refund > 0 {
		pnl = refund - p.Stake
	}

	return &models.SettlementResult{
		Status:      models.OutcomeFromPnl(pnl),
		RealizedPnl: pnl,
		ClosureType: models.ClosureCancelled,
	}
}
