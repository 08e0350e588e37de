// Package universe holds the tradable instrument allow-list. The list is
// loaded from a YAML registry, validated against a JSON schema and reloaded
// when the file changes.
package universe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"daybot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const instrumentSchema = `{
  "type": "object",
  "required": ["symbol"],
  "properties": {
    "symbol":   {"type": "string", "pattern": "^[A-Za-z0-9&_-]+$"},
    "exchange": {"type": "string", "enum": ["NSE", "BSE"]},
    "enabled":  {"type": "boolean"},
    "lot_size": {"type": "integer", "minimum": 1},
    "tags":     {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": false
}`

// Instrument is one entry in the registry.
type Instrument struct {
	Symbol   string   `yaml:"symbol" json:"symbol"`
	Exchange string   `yaml:"exchange" json:"exchange,omitempty"`
	Enabled  *bool    `yaml:"enabled" json:"enabled,omitempty"`
	LotSize  int      `yaml:"lot_size" json:"lot_size,omitempty"`
	Tags     []string `yaml:"tags" json:"tags,omitempty"`
}

// Active reports whether the instrument may be traded. Entries default to enabled.
func (i Instrument) Active() bool {
	return i.Enabled == nil || *i.Enabled
}

type FileConfig struct {
	Instruments []Instrument `yaml:"instruments"`
}

// Snapshot is an immutable view of the registry.
type Snapshot struct {
	Version     int64
	LoadedAt    time.Time
	Source      string
	Instruments []Instrument
}

// Symbols lists enabled symbols in file order.
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.Instruments))
	for _, inst := range s.Instruments {
		if inst.Active() {
			out = append(out, inst.Symbol)
		}
	}
	return out
}

type ChangeListener func(Snapshot)

type Registry struct {
	path   string
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	allowed   map[string]bool
	listeners []ChangeListener
}

// NewRegistry loads path and watches it. When path does not exist the
// registry serves the fallback symbols and does not watch anything.
func NewRegistry(path string, fallback []string) (*Registry, error) {
	schema, err := compileSchema(instrumentSchema)
	if err != nil {
		return nil, fmt.Errorf("compile instrument schema: %w", err)
	}
	r := &Registry{path: strings.TrimSpace(path), schema: schema}
	if r.path == "" || !fileExists(r.path) {
		if len(fallback) == 0 {
			return nil, fmt.Errorf("universe registry %q not found and no fallback symbols configured", path)
		}
		r.install(staticInstruments(fallback), "config")
		logger.Infof("universe registry using %d configured symbols", len(fallback))
		return r, nil
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read universe registry failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("universe reload failed, keeping previous list: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// NewStatic builds a registry over a fixed symbol list.
func NewStatic(symbols []string) *Registry {
	r := &Registry{}
	r.install(staticInstruments(symbols), "static")
	return r
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Allowed reports whether symbol is an enabled instrument.
func (r *Registry) Allowed(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowed[strings.ToUpper(strings.TrimSpace(symbol))]
}

// Symbols lists the enabled symbols in registry order.
func (r *Registry) Symbols() []string {
	return r.Snapshot().Symbols()
}

// OnChange registers fn to run after each successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	insts, err := r.readFile()
	if err != nil {
		return err
	}
	r.install(insts, filepath.Base(r.path))
	logger.Infof("universe registry loaded %d instruments from %s", len(insts), filepath.Base(r.path))
	return nil
}

func (r *Registry) install(insts []Instrument, source string) {
	allowed := make(map[string]bool, len(insts))
	for _, inst := range insts {
		if inst.Active() {
			allowed[inst.Symbol] = true
		}
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:     r.snapshot.Version + 1,
		LoadedAt:    time.Now(),
		Source:      source,
		Instruments: insts,
	}
	r.allowed = allowed
	r.mu.Unlock()
}

func (r *Registry) readFile() ([]Instrument, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read universe registry failed: %w", err)
	}
	var generic struct {
		Instruments []map[string]any `yaml:"instruments"`
	}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse universe registry failed: %w", err)
	}
	for idx, item := range generic.Instruments {
		if err := r.validate(item); err != nil {
			return nil, fmt.Errorf("instrument #%d: %w", idx+1, err)
		}
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse universe registry failed: %w", err)
	}
	return normalize(cfg.Instruments)
}

// validate round-trips through JSON so numbers reach the schema as float64.
func (r *Registry) validate(item map[string]any) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return r.schema.Validate(doc)
}

func normalize(in []Instrument) ([]Instrument, error) {
	if len(in) == 0 {
		return nil, errors.New("universe registry lists no instruments")
	}
	out := make([]Instrument, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, inst := range in {
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if seen[inst.Symbol] {
			return nil, fmt.Errorf("duplicate instrument %s", inst.Symbol)
		}
		seen[inst.Symbol] = true
		if inst.Exchange == "" {
			inst.Exchange = "NSE"
		}
		if inst.LotSize <= 0 {
			inst.LotSize = 1
		}
		out = append(out, inst)
	}
	return out, nil
}

func staticInstruments(symbols []string) []Instrument {
	out := make([]Instrument, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, Instrument{Symbol: sym, Exchange: "NSE", LotSize: 1})
	}
	return out
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("universe listener")
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := src
	dst.Instruments = append([]Instrument(nil), src.Instruments...)
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema(raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("instrument.json", strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("instrument.json")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
