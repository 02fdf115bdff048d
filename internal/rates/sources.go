package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTodayURL      = "https://dolarapi.com/v1/dolares/oficial"
	defaultBCRAURL       = "https://api.bcra.gob.ar/estadisticascambiarias/v1.0/Cotizaciones/USD"
	defaultArgDatosURL   = "https://api.argentinadatos.com/v1/cotizaciones/dolares/oficial"
	defaultSourceTimeout = 8 * time.Second
)

// Source yields the ARS-per-USD sell rate for one calendar date, or reports
// that it has no answer. Sources must swallow their own failures; the chain
// treats any false return as "try the next one".
type Source func(ctx context.Context, date string) (float64, bool)

// firstSuccess runs sources in order and returns the first result offered.
func firstSuccess(ctx context.Context, date string, sources []Source) (float64, bool) {
	for _, src := range sources {
		if rate, ok := src(ctx, date); ok {
			return rate, true
		}
	}
	return 0, false
}

// HTTPSources bundles the upstream rate endpoints: DolarAPI for today's
// quote, BCRA and ArgentinaDatos for historical ones.
type HTTPSources struct {
	client      *http.Client
	todayURL    string
	bcraURL     string
	argDatosURL string
}

func NewHTTPSources(client *http.Client) *HTTPSources {
	if client == nil {
		client = &http.Client{Timeout: defaultSourceTimeout}
	}
	return &HTTPSources{
		client:      client,
		todayURL:    defaultTodayURL,
		bcraURL:     defaultBCRAURL,
		argDatosURL: defaultArgDatosURL,
	}
}

// Today fetches the current official sell rate from DolarAPI.
func (s *HTTPSources) Today(ctx context.Context, _ string) (float64, bool) {
	var payload struct {
		Venta float64 `json:"venta"`
	}
	if err := s.getJSON(ctx, s.todayURL, &payload); err != nil {
		slog.WarnContext(ctx, "DolarAPI lookup failed", "error", err)
		return 0, false
	}
	if payload.Venta <= 0 {
		return 0, false
	}
	slog.DebugContext(ctx, "DolarAPI rate", "rate", payload.Venta)
	return payload.Venta, true
}

// BCRAHistorical fetches the official quotation for a past date from the
// central bank. The detail rows carry the value under different field names
// depending on the endpoint version, so all known spellings are checked.
func (s *HTTPSources) BCRAHistorical(ctx context.Context, date string) (float64, bool) {
	u := fmt.Sprintf("%s?fechaDesde=%s&fechaHasta=%s&limit=1",
		s.bcraURL, url.QueryEscape(date), url.QueryEscape(date))

	var payload struct {
		Results []struct {
			Valor      float64 `json:"valor"`
			ValorVenta float64 `json:"valorVenta"`
			Detalle    []struct {
				Valor      float64 `json:"valor"`
				ValorVenta float64 `json:"valorVenta"`
				Venta      float64 `json:"venta"`
			} `json:"detalle"`
		} `json:"results"`
	}
	if err := s.getJSON(ctx, u, &payload); err != nil {
		slog.WarnContext(ctx, "BCRA lookup failed", "date", date, "error", err)
		return 0, false
	}

	for _, result := range payload.Results {
		for _, d := range result.Detalle {
			for _, v := range []float64{d.Valor, d.ValorVenta, d.Venta} {
				if v >= MinPlausibleRate {
					slog.DebugContext(ctx, "BCRA historical rate", "date", date, "rate", v)
					return v, true
				}
			}
		}
		for _, v := range []float64{result.Valor, result.ValorVenta} {
			if v >= MinPlausibleRate {
				slog.DebugContext(ctx, "BCRA historical rate", "date", date, "rate", v)
				return v, true
			}
		}
	}
	return 0, false
}

// ArgentinaDatos fetches the historical official quotation list and picks the
// entry matching the requested date exactly.
func (s *HTTPSources) ArgentinaDatos(ctx context.Context, date string) (float64, bool) {
	u := fmt.Sprintf("%s?fechaDesde=%s&fechaHasta=%s&limit=5",
		s.argDatosURL, url.QueryEscape(date), url.QueryEscape(date))

	var payload []struct {
		Fecha string  `json:"fecha"`
		Venta float64 `json:"venta"`
	}
	if err := s.getJSON(ctx, u, &payload); err != nil {
		slog.WarnContext(ctx, "ArgentinaDatos lookup failed", "date", date, "error", err)
		return 0, false
	}

	for _, entry := range payload {
		if entry.Fecha == date && entry.Venta >= MinPlausibleRate {
			slog.DebugContext(ctx, "ArgentinaDatos historical rate", "date", date, "rate", entry.Venta)
			return entry.Venta, true
		}
	}
	return 0, false
}

func (s *HTTPSources) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
