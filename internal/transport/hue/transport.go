// Package hue implements the engine transport on top of a Hue bridge.
// Reads go through huego; writes are partial v1 PUTs so that unset
// fields are never sent (huego.State always serializes "on").
package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/huemotion/internal/light"
)

// ErrBridge is returned when the bridge answers a write with an error entry.
var ErrBridge = errors.New("bridge error")

// Transport talks to a Hue bridge over the v1 API.
type Transport struct {
	bridge     *huego.Bridge
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a bridge transport. Writes are throttled to rps requests per second.
func New(address, token string, timeout time.Duration, rps float64) *Transport {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 10.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Transport{
		bridge:     huego.New(address, token),
		baseURL:    strings.TrimSuffix(base, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Connect checks that the bridge is reachable and the token is accepted.
func (t *Transport) Connect(ctx context.Context) error {
	lights, err := t.Lights(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Hue bridge: %w", err)
	}
	log.Info().Str("address", t.baseURL).Int("lights", len(lights)).Msg("Connected to Hue bridge")
	return nil
}

// Lights fetches every light from the bridge. Hue and saturation are only
// reported for lights in a color mode.
func (t *Transport) Lights(ctx context.Context) (light.Collection, error) {
	lights, err := t.bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make(light.Collection, len(lights))
	for _, l := range lights {
		if l.ID <= 0 || l.ID > 255 || l.State == nil {
			continue
		}
		st := light.State{}.WithOn(l.State.On).WithBri(l.State.Bri)
		if l.State.ColorMode != "" {
			st = st.WithHue(l.State.Hue).WithSat(l.State.Sat)
		}
		out[light.DeviceID(l.ID)] = light.Light{
			Name:      l.Name,
			State:     st,
			Reachable: l.State.Reachable,
		}
	}
	return out, nil
}

// Apply sends a partial state to one light. Empty states are not sent.
func (t *Transport) Apply(ctx context.Context, id light.DeviceID, state light.State) error {
	if state.IsEmpty() {
		return nil
	}

	body, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := t.v1Request(ctx, http.MethodPut, fmt.Sprintf("lights/%d/state", id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to set light %d state: status %d: %s", id, resp.StatusCode, string(data))
	}
	if err := checkResponse(data); err != nil {
		return fmt.Errorf("failed to set light %d state: %w", id, err)
	}

	log.Debug().Uint8("light", uint8(id)).RawJSON("state", body).Msg("Light state applied")
	return nil
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func (t *Transport) v1URL(path string) string {
	return fmt.Sprintf("%s/api/%s/%s", t.baseURL, t.token, path)
}

func (t *Transport) v1Request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.v1URL(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.httpClient.Do(req)
}

type apiError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// checkResponse looks for error entries in a v1 write response, which the
// bridge reports with status 200.
func checkResponse(data []byte) error {
	var entries []struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		// Not a list of results; nothing to check.
		return nil
	}
	for _, e := range entries {
		if e.Error != nil {
			return fmt.Errorf("%w: %s (%s)", ErrBridge, e.Error.Description, e.Error.Address)
		}
	}
	return nil
}
