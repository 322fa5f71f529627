/*
dto.go - JSON wire types for the costing API

PURPOSE:
  Request/response shapes for the HTTP surface. Quantities, prices and
  costs are rendered as strings: decimal values must survive the wire
  without float truncation.
*/
package api

import (
	"time"

	"github.com/warp/costing-engine/costing"
)

// =============================================================================
// RESPONSES
// =============================================================================

type RunReportDTO struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Costed     int              `json:"costed"`
	Flagged    int              `json:"flagged"`
	Groups     []GroupResultDTO `json:"groups"`
}

type GroupResultDTO struct {
	Key     string `json:"key"`
	State   string `json:"state"`
	Costed  int    `json:"costed"`
	Flagged int    `json:"flagged"`
	Error   string `json:"error,omitempty"`
}

type RunningBalanceDTO struct {
	Key         string `json:"key"`
	Quantity    string `json:"quantity"`
	TotalCost   string `json:"total_cost"`
	AverageCost string `json:"average_cost"`
	UpdatedAt   string `json:"updated_at"`
}

type DailyBalanceDTO struct {
	Date     string `json:"date"`
	Quantity string `json:"quantity"`
	Value    string `json:"value"`
}

type EntryDTO struct {
	ID              int64  `json:"id"`
	TransactionID   int64  `json:"transaction_id"`
	Date            string `json:"date"`
	Kind            string `json:"kind"`
	Quantity        string `json:"quantity"`
	UnitCost        string `json:"unit_cost"`
	TotalCost       string `json:"total_cost"`
	BalanceQuantity string `json:"balance_quantity"`
	BalanceValue    string `json:"balance_value"`
	Available       string `json:"available"`
}

type TraceDTO struct {
	ID           int64  `json:"id"`
	InflowTxID   int64  `json:"inflow_tx_id"`
	OutflowTxID  int64  `json:"outflow_tx_id"`
	QuantityUsed string `json:"quantity_used"`
	CostConsumed string `json:"cost_consumed"`
}

type AdjustmentProposalDTO struct {
	ReferenceTxID int64  `json:"reference_tx_id"`
	Kind          string `json:"kind"`
	Date          string `json:"date"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	Memo          string `json:"memo"`
	PriorQuantity string `json:"prior_quantity"`
	PriorValue    string `json:"prior_value"`
}

type CreatedDTO struct {
	ID int64 `json:"id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type ProposeAdjustmentRequest struct {
	TransactionID int64  `json:"transaction_id"`
	Kind          string `json:"kind"` // "inflow" or "outflow"
}

type CreateAdjustmentRequest struct {
	TransactionID int64  `json:"transaction_id"`
	Kind          string `json:"kind"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toRunReportDTO(r *costing.RunReport) RunReportDTO {
	dto := RunReportDTO{
		RunID:      r.RunID.String(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Costed:     r.Costed(),
		Flagged:    r.Flagged(),
		Groups:     make([]GroupResultDTO, 0, len(r.Groups)),
	}
	for _, g := range r.Groups {
		gd := GroupResultDTO{
			Key:     g.Key.String(),
			State:   string(g.State),
			Costed:  g.Costed,
			Flagged: g.Flagged,
		}
		if g.Err != nil {
			gd.Error = g.Err.Error()
		}
		dto.Groups = append(dto.Groups, gd)
	}
	return dto
}

func toRunningBalanceDTO(b *costing.RunningBalance) RunningBalanceDTO {
	return RunningBalanceDTO{
		Key:         b.Group.String(),
		Quantity:    b.Quantity.String(),
		TotalCost:   b.TotalCost.String(),
		AverageCost: b.AverageCost.String(),
		UpdatedAt:   b.UpdatedAt.String(),
	}
}

func toDailyBalanceDTO(b costing.DailyBalance) DailyBalanceDTO {
	return DailyBalanceDTO{
		Date:     b.Date.String(),
		Quantity: b.Quantity.String(),
		Value:    b.Value.String(),
	}
}

func toEntryDTO(e costing.Entry) EntryDTO {
	return EntryDTO{
		ID:              e.ID,
		TransactionID:   e.TransactionID,
		Date:            e.Date.String(),
		Kind:            string(e.Kind),
		Quantity:        e.Quantity.String(),
		UnitCost:        e.UnitCost.String(),
		TotalCost:       e.TotalCost.String(),
		BalanceQuantity: e.BalanceQuantity.String(),
		BalanceValue:    e.BalanceValue.String(),
		Available:       e.Available.String(),
	}
}

func toTraceDTO(t costing.Trace) TraceDTO {
	return TraceDTO{
		ID:           t.ID,
		InflowTxID:   t.InflowTxID,
		OutflowTxID:  t.OutflowTxID,
		QuantityUsed: t.QuantityUsed.String(),
		CostConsumed: t.CostConsumed.String(),
	}
}

func toProposalDTO(p *costing.AdjustmentProposal) AdjustmentProposalDTO {
	return AdjustmentProposalDTO{
		ReferenceTxID: p.ReferenceTxID,
		Kind:          string(p.Kind),
		Date:          p.Date.String(),
		Quantity:      p.Quantity.String(),
		Price:         p.Price.String(),
		Memo:          p.Memo,
		PriorQuantity: p.PriorQuantity.String(),
		PriorValue:    p.PriorValue.String(),
	}
}
