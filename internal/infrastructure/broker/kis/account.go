package kis

import (
	"context"
	"fmt"
	"net/url"

	"kstrade/internal/domain/model"
)

// AvailableCash returns the orderable cash balance in KRW.
func (c *Client) AvailableCash(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("CANO", c.cano)
	params.Set("ACNT_PRDT_CD", c.prdtCode)
	params.Set("PDNO", "005930") // any listed code works; the endpoint requires one
	params.Set("ORD_UNPR", "0")
	params.Set("ORD_DVSN", "01")
	params.Set("CMA_EVLU_AMT_ICLD_YN", "Y")
	params.Set("OVRS_ICLD_YN", "N")

	var resp struct {
		envelope
		Output struct {
			OrderableCash string `json:"ord_psbl_cash"`
		} `json:"output"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/trading/inquire-psbl-order",
		c.trID("TTTC8908R", "VTTC8908R"), params, &resp); err != nil {
		return 0, err
	}
	if !resp.ok() {
		return 0, fmt.Errorf("available cash: %s", resp.Msg)
	}
	return asFloat(resp.Output.OrderableCash), nil
}

// Holdings returns the account's open positions keyed by symbol. Positions
// the broker reports with zero quantity are skipped.
func (c *Client) Holdings(ctx context.Context) (map[string]model.Holding, error) {
	params := url.Values{}
	params.Set("CANO", c.cano)
	params.Set("ACNT_PRDT_CD", c.prdtCode)
	params.Set("AFHR_FLPR_YN", "N")
	params.Set("OFL_YN", "")
	params.Set("INQR_DVSN", "02")
	params.Set("UNPR_DVSN", "01")
	params.Set("FUND_STTL_ICLD_YN", "N")
	params.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	params.Set("PRCS_DVSN", "01")
	params.Set("CTX_AREA_FK100", "")
	params.Set("CTX_AREA_NK100", "")

	var resp struct {
		envelope
		Output1 []struct {
			Symbol       string `json:"pdno"`
			Name         string `json:"prdt_name"`
			Quantity     string `json:"hldg_qty"`
			AvgPrice     string `json:"pchs_avg_pric"`
			CurrentPrice string `json:"prpr"`
			PnLPct       string `json:"evlu_pfls_rt"`
			TotalValue   string `json:"evlu_amt"`
		} `json:"output1"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/trading/inquire-balance",
		c.trID("TTTC8434R", "VTTC8434R"), params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("holdings: %s", resp.Msg)
	}

	out := make(map[string]model.Holding, len(resp.Output1))
	for _, row := range resp.Output1 {
		qty := asInt(row.Quantity)
		if row.Symbol == "" || qty <= 0 {
			continue
		}
		out[row.Symbol] = model.Holding{
			Symbol:       row.Symbol,
			Name:         row.Name,
			Quantity:     qty,
			AvgPrice:     asFloat(row.AvgPrice),
			CurrentPrice: asFloat(row.CurrentPrice),
			PnLPct:       asFloat(row.PnLPct),
			TotalValue:   asFloat(row.TotalValue),
		}
	}
	return out, nil
}
