// ABOUTME: Latency table mapping device ids to relative playback delays
// ABOUTME: Computes delays from measurements and persists them as TOML
package latency

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// Entry is one device row of the table
type Entry struct {
	DeviceID               int      `toml:"device_id"`
	Name                   string   `toml:"name,omitempty"`
	RelativeDelaySeconds   float64  `toml:"relative_delay_seconds"`
	AbsoluteLatencySeconds *float64 `toml:"absolute_latency_seconds,omitempty"`
	SpreadSeconds          *float64 `toml:"spread_seconds,omitempty"`
	Diagnostic             string   `toml:"diagnostic,omitempty"`
}

// RelativeDelay returns the delay as a duration
func (e Entry) RelativeDelay() time.Duration {
	return seconds(e.RelativeDelaySeconds)
}

// Table maps device ids to relative delays. The slowest measured device has delay 0.
type Table struct {
	RunID           string    `toml:"run_id"`
	CreatedAt       time.Time `toml:"created_at"`
	IncludeOpenTime bool      `toml:"include_open_time"`
	Devices         []Entry   `toml:"devices"`

	index map[int]int
}

// Measurement is the calibration result for one device
type Measurement struct {
	DeviceID int
	Name     string
	Present  bool
	Latency  time.Duration // median absolute latency when Present
	Spread   time.Duration // standard deviation over rounds
	Err      error         // reason when not Present
}

// Compute builds a table from measurements: every present device gets
// max(latency) - own latency, absent devices get 0 with a diagnostic.
// When no device was measured the table is empty.
func Compute(measurements []Measurement, includeOpenTime bool) *Table {
	t := &Table{
		RunID:           uuid.NewString(),
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
		IncludeOpenTime: includeOpenTime,
	}

	var maxLatency time.Duration
	present := 0
	for _, m := range measurements {
		if !m.Present {
			continue
		}
		if present == 0 || m.Latency > maxLatency {
			maxLatency = m.Latency
		}
		present++
	}

	if present == 0 {
		t.reindex()
		return t
	}

	for _, m := range measurements {
		e := Entry{DeviceID: m.DeviceID, Name: m.Name}
		if m.Present {
			e.RelativeDelaySeconds = (maxLatency - m.Latency).Seconds()
			abs := m.Latency.Seconds()
			spread := m.Spread.Seconds()
			e.AbsoluteLatencySeconds = &abs
			e.SpreadSeconds = &spread
		} else {
			e.Diagnostic = "measurement failed"
			if m.Err != nil {
				e.Diagnostic = m.Err.Error()
			}
		}
		t.Devices = append(t.Devices, e)
	}

	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[int]int, len(t.Devices))
	for i, e := range t.Devices {
		t.index[e.DeviceID] = i
	}
}

// Lookup returns the entry for a device
func (t *Table) Lookup(id int) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[id]
	if !ok {
		return Entry{}, false
	}
	return t.Devices[i], true
}

// Delay returns the relative delay for a device, 0 when absent
func (t *Table) Delay(id int) time.Duration {
	e, ok := t.Lookup(id)
	if !ok {
		return 0
	}
	return e.RelativeDelay()
}

// Len returns the number of entries
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Devices)
}

// rawEntry detects missing required keys
type rawEntry struct {
	DeviceID               *int     `toml:"device_id"`
	Name                   string   `toml:"name"`
	RelativeDelaySeconds   *float64 `toml:"relative_delay_seconds"`
	AbsoluteLatencySeconds *float64 `toml:"absolute_latency_seconds"`
	SpreadSeconds          *float64 `toml:"spread_seconds"`
	Diagnostic             string   `toml:"diagnostic"`
}

type rawTable struct {
	RunID           string     `toml:"run_id"`
	CreatedAt       time.Time  `toml:"created_at"`
	IncludeOpenTime bool       `toml:"include_open_time"`
	Devices         []rawEntry `toml:"devices"`
}

// Load reads and validates a latency table file
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read latency table: %w", config.ErrMissingOrMalformed, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates latency table TOML
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: unknown keys in latency table: %s", config.ErrMissingOrMalformed, strict.String())
		}
		return nil, fmt.Errorf("%w: failed to parse latency table: %w", config.ErrMissingOrMalformed, err)
	}

	t := &Table{
		RunID:           raw.RunID,
		CreatedAt:       raw.CreatedAt,
		IncludeOpenTime: raw.IncludeOpenTime,
		Devices:         make([]Entry, 0, len(raw.Devices)),
	}

	seen := make(map[int]bool, len(raw.Devices))
	for i, r := range raw.Devices {
		if r.DeviceID == nil {
			return nil, fmt.Errorf("%w: devices[%d] is missing device_id", config.ErrMissingOrMalformed, i)
		}
		if r.RelativeDelaySeconds == nil {
			return nil, fmt.Errorf("%w: device %d is missing relative_delay_seconds", config.ErrMissingOrMalformed, *r.DeviceID)
		}
		if err := checkSeconds("relative_delay_seconds", r.RelativeDelaySeconds); err != nil {
			return nil, fmt.Errorf("%w: device %d: %w", config.ErrMissingOrMalformed, *r.DeviceID, err)
		}
		if err := checkSeconds("absolute_latency_seconds", r.AbsoluteLatencySeconds); err != nil {
			return nil, fmt.Errorf("%w: device %d: %w", config.ErrMissingOrMalformed, *r.DeviceID, err)
		}
		if err := checkSeconds("spread_seconds", r.SpreadSeconds); err != nil {
			return nil, fmt.Errorf("%w: device %d: %w", config.ErrMissingOrMalformed, *r.DeviceID, err)
		}
		if seen[*r.DeviceID] {
			return nil, fmt.Errorf("%w: duplicate device_id %d", config.ErrMissingOrMalformed, *r.DeviceID)
		}
		seen[*r.DeviceID] = true

		t.Devices = append(t.Devices, Entry{
			DeviceID:               *r.DeviceID,
			Name:                   r.Name,
			RelativeDelaySeconds:   *r.RelativeDelaySeconds,
			AbsoluteLatencySeconds: r.AbsoluteLatencySeconds,
			SpreadSeconds:          r.SpreadSeconds,
			Diagnostic:             r.Diagnostic,
		})
	}

	t.reindex()
	return t, nil
}

// Save writes the table as TOML, rows ordered by device id
func (t *Table) Save(path string) error {
	out := *t
	out.Devices = append([]Entry(nil), t.Devices...)
	sort.SliceStable(out.Devices, func(i, j int) bool {
		return out.Devices[i].DeviceID < out.Devices[j].DeviceID
	})

	data, err := toml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode latency table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write latency table: %w", err)
	}
	return nil
}

// maxSeconds is the largest value that still fits a time.Duration
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// checkSeconds accepts nil or a finite, non-negative value representable as a time.Duration
func checkSeconds(key string, v *float64) error {
	if v == nil {
		return nil
	}
	switch {
	case math.IsNaN(*v) || math.IsInf(*v, 0):
		return fmt.Errorf("%s is not a finite number: %v", key, *v)
	case *v < 0:
		return fmt.Errorf("%s is negative: %v", key, *v)
	case *v >= maxSeconds:
		return fmt.Errorf("%s is out of range: %v", key, *v)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
