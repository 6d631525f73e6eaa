package kis

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"kstrade/internal/domain/model"
)

// Quote fetches the last-trade snapshot.
func (c *Client) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)

	var resp struct {
		envelope
		Output struct {
			Price     string `json:"stck_prpr"`
			ChangePct string `json:"prdy_ctrt"`
			Volume    string `json:"acml_vol"`
		} `json:"output"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/quotations/inquire-price",
		"FHKST01010100", params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("quote %s: %s", symbol, resp.Msg)
	}

	price := asInt(resp.Output.Price)
	if price <= 0 {
		return nil, fmt.Errorf("quote %s: non-positive price %q", symbol, resp.Output.Price)
	}
	return &model.Quote{
		Symbol:    symbol,
		Price:     price,
		ChangePct: asFloat(resp.Output.ChangePct),
		Volume:    asInt(resp.Output.Volume),
		Timestamp: time.Now(),
	}, nil
}

// OrderBook fetches the best bid/ask level from the asking-price endpoint.
func (c *Client) OrderBook(ctx context.Context, symbol string) (*model.OrderBook, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)

	var resp struct {
		envelope
		Output1 struct {
			Ask    string `json:"askp1"`
			Bid    string `json:"bidp1"`
			AskQty string `json:"askp_rsqn1"`
			BidQty string `json:"bidp_rsqn1"`
		} `json:"output1"`
		Output2 struct {
			Price string `json:"stck_prpr"`
		} `json:"output2"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/quotations/inquire-asking-price-exp-ccn",
		"FHKST01010200", params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("orderbook %s: %s", symbol, resp.Msg)
	}

	book := &model.OrderBook{
		Symbol: symbol,
		Price:  asInt(resp.Output2.Price),
		Ask:    asInt(resp.Output1.Ask),
		Bid:    asInt(resp.Output1.Bid),
		AskQty: asInt(resp.Output1.AskQty),
		BidQty: asInt(resp.Output1.BidQty),
	}
	book.Spread = book.Ask - book.Bid
	return book, nil
}

// DailyBars fetches up to days of daily candles, oldest first.
func (c *Client) DailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	if days <= 0 {
		days = 100
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days*2) // pad for weekends and holidays

	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)
	params.Set("FID_INPUT_DATE_1", start.Format("20060102"))
	params.Set("FID_INPUT_DATE_2", end.Format("20060102"))
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "0")

	var resp struct {
		envelope
		Output2 []struct {
			Date   string `json:"stck_bsop_date"`
			Open   string `json:"stck_oprc"`
			High   string `json:"stck_hgpr"`
			Low    string `json:"stck_lwpr"`
			Close  string `json:"stck_clpr"`
			Volume string `json:"acml_vol"`
		} `json:"output2"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice",
		"FHKST03010100", params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("daily bars %s: %s", symbol, resp.Msg)
	}

	// Rows arrive newest first; flip and clip to the requested window.
	bars := make([]model.Bar, 0, len(resp.Output2))
	for i := len(resp.Output2) - 1; i >= 0; i-- {
		row := resp.Output2[i]
		if row.Date == "" {
			continue
		}
		ts, err := time.ParseInLocation("20060102", row.Date, time.Local)
		if err != nil {
			continue
		}
		bars = append(bars, model.Bar{
			Time:   ts,
			Open:   asFloat(row.Open),
			High:   asFloat(row.High),
			Low:    asFloat(row.Low),
			Close:  asFloat(row.Close),
			Volume: asInt(row.Volume),
		})
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// MinuteBars fetches the recent intraday candles, oldest first.
func (c *Client) MinuteBars(ctx context.Context, symbol string) ([]model.Bar, error) {
	params := url.Values{}
	params.Set("FID_ETC_CLS_CODE", "")
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)
	params.Set("FID_INPUT_HOUR_1", time.Now().Format("150405"))
	params.Set("FID_PW_DATA_INCU_YN", "Y")

	var resp struct {
		envelope
		Output2 []struct {
			Date   string `json:"stck_bsop_date"`
			Hour   string `json:"stck_cntg_hour"`
			Close  string `json:"stck_prpr"`
			Open   string `json:"stck_oprc"`
			High   string `json:"stck_hgpr"`
			Low    string `json:"stck_lwpr"`
			Volume string `json:"cntg_vol"`
		} `json:"output2"`
	}
	if err := c.doGet(ctx, "/uapi/domestic-stock/v1/quotations/inquire-time-itemchartprice",
		"FHKST03010200", params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("minute bars %s: %s", symbol, resp.Msg)
	}

	bars := make([]model.Bar, 0, len(resp.Output2))
	for i := len(resp.Output2) - 1; i >= 0; i-- {
		row := resp.Output2[i]
		if row.Date == "" || row.Hour == "" {
			continue
		}
		ts, err := time.ParseInLocation("20060102150405", row.Date+row.Hour, time.Local)
		if err != nil {
			continue
		}
		bars = append(bars, model.Bar{
			Time:   ts,
			Open:   asFloat(row.Open),
			High:   asFloat(row.High),
			Low:    asFloat(row.Low),
			Close:  asFloat(row.Close),
			Volume: asInt(row.Volume),
		})
	}
	return bars, nil
}
