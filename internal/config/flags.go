package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Runtime flags: typed values that can be inspected and updated while the
// process runs, persisted as a flat JSON object keyed by internal name.

var (
	flagMapMu sync.RWMutex
	allFlags  = make(map[string]configFlag)
)

type configFlag interface {
	sneakUpdate(newVal json.RawMessage) error
	rawValue() any
}

type Flag[T any] interface {
	Value() T
	Update(T)
	InternalName() string
	HumanName() string
}

type flag[T any] struct {
	mu        sync.RWMutex
	name      string
	val       T
	humanName string
}

func (f *flag[T]) Value() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.val
}

func (f *flag[T]) Update(newVal T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.val = newVal
}

func (f *flag[T]) InternalName() string {
	return f.name
}

func (f *flag[T]) HumanName() string {
	return f.humanName
}

func (f *flag[T]) sneakUpdate(newVal json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := json.Unmarshal(newVal, &f.val); err != nil {
		return fmt.Errorf("invalid value for flag %q, expected %T", f.name, f.val)
	}
	return nil
}

func (f *flag[T]) rawValue() any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.val
}

// GenFlag registers a new flag with its default value. Must be called from
// package init paths, before LoadFlags.
func GenFlag[T any](name string, defaultVal T, readableName string) Flag[T] {
	flagMapMu.Lock()
	defer flagMapMu.Unlock()
	f := &flag[T]{name: name, val: defaultVal, humanName: readableName}
	allFlags[name] = f
	return f
}

// LoadFlags overlays persisted values onto the registered flags. Unknown
// names are ignored so removing a flag doesn't brick old files; a missing
// file just keeps the defaults.
func LoadFlags(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	var vals map[string]json.RawMessage
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("couldn't parse flags file: %w", err)
	}

	flagMapMu.RLock()
	defer flagMapMu.RUnlock()
	for name, raw := range vals {
		flg, ok := allFlags[name]
		if !ok {
			continue
		}
		if err := flg.sneakUpdate(raw); err != nil {
			return err
		}
	}
	return nil
}

// SaveFlags persists the current values of every registered flag.
func SaveFlags(path string) error {
	if path == "" {
		return nil
	}

	flagMapMu.RLock()
	vals := make(map[string]any, len(allFlags))
	for name, flg := range allFlags {
		vals[name] = flg.rawValue()
	}
	flagMapMu.RUnlock()

	data, err := json.MarshalIndent(vals, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
