// Package history records every emitted frame to InfluxDB.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/eventbus"
	"github.com/dokzlo13/huemotion/internal/light"
)

// Measurement is the InfluxDB measurement frames are written to.
const Measurement = "light_frame"

const connectTimeout = 10 * time.Second

// ErrUnhealthy is returned when the server answers the ping but reports a problem.
var ErrUnhealthy = errors.New("influxdb not healthy")

// PointWriter accepts points for asynchronous delivery. api.WriteAPI implements it.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Recorder turns frame events into points.
type Recorder struct {
	writer PointWriter
	now    func() time.Time

	client   influxdb2.Client
	writeAPI api.WriteAPI
	closeMu  sync.Mutex
}

// NewRecorder creates a recorder that writes to w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{writer: w, now: time.Now}
}

// Connect pings the server and returns a recorder using its non-blocking write API.
func Connect(url, token, org, bucket string) (*Recorder, error) {
	client := influxdb2.NewClientWithOptions(url, token, influxdb2.DefaultOptions().SetBatchSize(100))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping failed: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, ErrUnhealthy
	}

	writeAPI := client.WriteAPI(org, bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn().Err(err).Msg("InfluxDB write failed")
		}
	}()

	r := NewRecorder(writeAPI)
	r.client = client
	r.writeAPI = writeAPI
	log.Info().Str("url", url).Str("bucket", bucket).Msg("Frame history enabled")
	return r, nil
}

// Subscribe records frame events published on the bus.
func (r *Recorder) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeFrame, r.Record)
}

// Record writes one point per light state in a frame event.
func (r *Recorder) Record(event eventbus.Event) {
	states, ok := event.Data["states"].(map[light.DeviceID]light.State)
	if !ok {
		return
	}
	animationName, _ := event.Data["animation"].(string)
	runID, _ := event.Data["run_id"].(string)
	cursor, _ := event.Data["cursor"].(int)

	ts := r.now()
	for id, st := range states {
		fields := fieldsOf(st)
		if len(fields) == 0 {
			continue
		}
		fields["step"] = cursor

		r.writer.WritePoint(write.NewPoint(
			Measurement,
			map[string]string{
				"light":     strconv.Itoa(int(id)),
				"animation": animationName,
				"run_id":    runID,
			},
			fields,
			ts,
		))
	}
}

func fieldsOf(st light.State) map[string]interface{} {
	fields := make(map[string]interface{}, 5)
	if st.On != nil {
		fields["on"] = *st.On
	}
	if st.Hue != nil {
		fields["hue"] = int64(*st.Hue)
	}
	if st.Sat != nil {
		fields["sat"] = int64(*st.Sat)
	}
	if st.Bri != nil {
		fields["bri"] = int64(*st.Bri)
	}
	if st.TransitionTime != nil {
		fields["transitiontime"] = int64(*st.TransitionTime)
	}
	return fields
}

// Close flushes pending points and closes the client, if Connect created one.
func (r *Recorder) Close() {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()

	if r.client == nil {
		return
	}
	r.writeAPI.Flush()
	r.client.Close()
	r.client = nil
}
