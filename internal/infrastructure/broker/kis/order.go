package kis

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"kstrade/internal/domain/model"
)

// PlaceOrder submits a cash order. price > 0 submits a limit order at that
// price; price 0 submits a market order.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side model.Side, qty int64, price int64) (*model.OrderResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("place order %s: non-positive quantity %d", symbol, qty)
	}

	ordDvsn := "00" // limit
	if price <= 0 {
		ordDvsn = "01" // market
		price = 0
	}

	trID := c.trID("TTTC0802U", "VTTC0802U") // buy
	if side == model.SideSell {
		trID = c.trID("TTTC0801U", "VTTC0801U")
	}

	body := map[string]string{
		"CANO":         c.cano,
		"ACNT_PRDT_CD": c.prdtCode,
		"PDNO":         symbol,
		"ORD_DVSN":     ordDvsn,
		"ORD_QTY":      strconv.FormatInt(qty, 10),
		"ORD_UNPR":     strconv.FormatInt(price, 10),
	}

	var resp struct {
		envelope
		Output struct {
			OrderID  string `json:"ODNO"`
			BranchNo string `json:"KRX_FWDG_ORD_ORGNO"`
			OrderTm  string `json:"ORD_TMD"`
		} `json:"output"`
	}
	if err := c.doPost(ctx, "/uapi/domestic-stock/v1/trading/order-cash", trID, body, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return &model.OrderResult{Success: false, Message: resp.Msg}, nil
	}

	log.Debug().Str("symbol", symbol).Str("side", string(side)).
		Int64("qty", qty).Int64("price", price).
		Str("order_id", resp.Output.OrderID).Msg("order accepted")

	return &model.OrderResult{
		Success:    true,
		OrderID:    resp.Output.OrderID,
		LimitPrice: price,
		Message:    resp.Msg,
	}, nil
}

// ccldRow is one row of today's execution report.
type ccldRow struct {
	OrderID      string
	BranchNo     string
	OrderedQty   int64
	ExecutedQty  int64
	RemainingQty int64
	ExecutedAmt  float64
}

// dailyExecutions queries today's per-order execution report, optionally
// filtered to one order id.
func (c *Client) dailyExecutions(ctx context.Context, orderID string) ([]ccldRow, error) {
	today := time.Now().Format("20060102")

	params := url.Values{}
	params.Set("CANO", c.cano)
	params.Set("ACNT_PRDT_CD", c.prdtCode)
	params.Set("INQR_STRT_DT", today)
	params.Set("INQR_END_DT", today)
	params.Set("SLL_BUY_DVSN_CD", "00")
	params.Set("INQR_DVSN", "00")
	params.Set("PDNO", "")
	params.Set("CCLD_DVSN", "00")
	params.Set("ORD_GNO_BRNO", "")
	params.Set("ODNO", orderID)
	params.Set("INQR_DVSN_3", "00")
	params.Set("INQR_DVSN_1", "")
	params.Set("CTX_AREA_FK100", "")
	params.Set("CTX_AREA_NK100", "")

	var resp struct {
		envelope
		Output1 []struct {
			OrderID      string `json:"odno"`
			BranchNo     string `json:"ord_gno_brno"`
			OrderedQty   string `json:"ord_qty"`
			ExecutedQty  string `json:"tot_ccld_qty"`
			RemainingQty string `json:"rmn_qty"`
			ExecutedAmt  string `json:"tot_ccld_amt"`
		} `json:"output1"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/trading/inquire-daily-ccld",
		c.trID("TTTC8001R", "VTTC8001R"), params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("daily executions: %s", resp.Msg)
	}

	rows := make([]ccldRow, 0, len(resp.Output1))
	for _, r := range resp.Output1 {
		if r.OrderID == "" {
			continue
		}
		rows = append(rows, ccldRow{
			OrderID:      r.OrderID,
			BranchNo:     r.BranchNo,
			OrderedQty:   asInt(r.OrderedQty),
			ExecutedQty:  asInt(r.ExecutedQty),
			RemainingQty: asInt(r.RemainingQty),
			ExecutedAmt:  asFloat(r.ExecutedAmt),
		})
	}
	return rows, nil
}

// OrderExecution polls today's execution report for one order. An order
// absent from the report maps to ExecNotFound; the caller decides whether
// that means rejected or not yet visible.
func (c *Client) OrderExecution(ctx context.Context, orderID string) (*model.ExecutionReport, error) {
	rows, err := c.dailyExecutions(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if r.OrderID != orderID {
			continue
		}
		rep := &model.ExecutionReport{
			ExecutedQty:  r.ExecutedQty,
			RemainingQty: r.RemainingQty,
		}
		if r.ExecutedQty > 0 {
			rep.AvgPrice = r.ExecutedAmt / float64(r.ExecutedQty)
		}
		switch {
		case r.ExecutedQty > 0 && r.RemainingQty == 0:
			rep.Status = model.ExecFilled
		case r.ExecutedQty > 0:
			rep.Status = model.ExecPartial
		default:
			rep.Status = model.ExecPending
		}
		return rep, nil
	}
	return &model.ExecutionReport{Status: model.ExecNotFound}, nil
}

// CancelOrder cancels the full remaining quantity of an order. The
// revise/cancel endpoint needs the forwarding branch number, which is read
// back from today's execution report.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	rows, err := c.dailyExecutions(ctx, orderID)
	if err != nil {
		return err
	}

	var branch string
	found := false
	for _, r := range rows {
		if r.OrderID == orderID {
			branch = r.BranchNo
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("cancel %s: order not in today's report", orderID)
	}

	body := map[string]string{
		"CANO":               c.cano,
		"ACNT_PRDT_CD":       c.prdtCode,
		"KRX_FWDG_ORD_ORGNO": branch,
		"ORGN_ODNO":          orderID,
		"ORD_DVSN":           "00",
		"RVSE_CNCL_DVSN_CD":  "02", // cancel
		"ORD_QTY":            "0",
		"ORD_UNPR":           "0",
		"QTY_ALL_ORD_YN":     "Y",
	}

	var resp struct {
		envelope
		Output struct {
			OrderID string `json:"ODNO"`
		} `json:"output"`
	}
	if err := c.doPost(ctx, "/uapi/domestic-stock/v1/trading/order-rvsecncl",
		c.trID("TTTC0803U", "VTTC0803U"), body, &resp); err != nil {
		return err
	}
	if !resp.ok() {
		return fmt.Errorf("cancel %s: %s", orderID, resp.Msg)
	}
	log.Info().Str("order_id", orderID).Msg("order cancelled")
	return nil
}
