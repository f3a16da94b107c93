// Package keystore persists the provider selection, the storage mode and the
// per-provider API keys across a durable and a session-scoped kv.Store.
//
// The mode flag and provider selection always live in the durable store.
// Keys live in exactly one of the two stores: every save writes the store
// matching the chosen mode and clears both keys from the other one.
package keystore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"writedesk/internal/kv"
	"writedesk/internal/llm"
)

// Mode selects which store holds API keys.
type Mode string

const (
	ModeDurable   Mode = "durable"
	ModeEphemeral Mode = "ephemeral"
)

// ParseMode reports whether s names a storage mode.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDurable, ModeEphemeral:
		return m, true
	default:
		return "", false
	}
}

const (
	keyProvider = "writedesk.provider"
	keyMode     = "writedesk.storage_mode"
	keyPrefix   = "writedesk.key."
)

func apiKeyName(p llm.Provider) string {
	return keyPrefix + string(p)
}

func allKeyNames() []string {
	providers := llm.Providers()
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = apiKeyName(p)
	}
	return names
}

// Keystore reads and writes settings for one session.
type Keystore struct {
	durable   kv.Store
	ephemeral kv.Store
	log       *slog.Logger
}

// New binds a keystore to a durable and a session-scoped store.
func New(durable, ephemeral kv.Store, log *slog.Logger) *Keystore {
	if log == nil {
		log = slog.Default()
	}
	return &Keystore{durable: durable, ephemeral: ephemeral, log: log}
}

// SaveRequest is the full settings form. Empty keys clear the stored key.
type SaveRequest struct {
	Provider  llm.Provider `json:"provider" validate:"required,oneof=openai gemini"`
	Mode      Mode         `json:"mode" validate:"required,oneof=durable ephemeral"`
	OpenAIKey string       `json:"openai_key" validate:"max=512"`
	GeminiKey string       `json:"gemini_key" validate:"max=512"`
}

// Confirmation is the user-facing result of a save.
type Confirmation struct {
	Mode    Mode   `json:"mode"`
	Message string `json:"message"`
}

// Settings is a snapshot safe to hand to the UI: it never contains keys.
type Settings struct {
	Provider   llm.Provider          `json:"provider"`
	Mode       Mode                  `json:"mode"`
	Configured map[llm.Provider]bool `json:"configured"`
}

// GetProvider returns the persisted provider. Missing, unreadable or
// unrecognized values fall back to llm.DefaultProvider.
func (k *Keystore) GetProvider(ctx context.Context) llm.Provider {
	raw, ok, err := k.durable.Get(ctx, keyProvider)
	if err != nil {
		k.log.Warn("failed to read provider; using default", "err", err)
		return llm.DefaultProvider
	}
	if !ok {
		return llm.DefaultProvider
	}
	p, valid := llm.ParseProvider(raw)
	if !valid {
		k.log.Warn("unrecognized provider in storage; using default", "value", raw)
		return llm.DefaultProvider
	}
	return p
}

// GetMode returns the persisted storage mode, durable by default.
func (k *Keystore) GetMode(ctx context.Context) Mode {
	raw, ok, err := k.durable.Get(ctx, keyMode)
	if err != nil {
		k.log.Warn("failed to read storage mode; using durable", "err", err)
		return ModeDurable
	}
	if !ok {
		return ModeDurable
	}
	if m, valid := ParseMode(raw); valid {
		return m
	}
	return ModeDurable
}

// GetKey reads the key for p from the store matching the persisted mode.
func (k *Keystore) GetKey(ctx context.Context, p llm.Provider) (string, bool) {
	store := k.storeFor(k.GetMode(ctx))
	v, ok, err := store.Get(ctx, apiKeyName(p))
	if err != nil {
		k.log.Warn("failed to read api key", "provider", string(p), "err", err)
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Save persists provider and mode to the durable store, writes (or clears)
// both keys in the store for req.Mode and clears both keys from the other.
func (k *Keystore) Save(ctx context.Context, req SaveRequest) (Confirmation, error) {
	p, ok := llm.ParseProvider(string(req.Provider))
	if !ok {
		return Confirmation{}, fmt.Errorf("invalid provider %q", req.Provider)
	}
	mode, ok := ParseMode(string(req.Mode))
	if !ok {
		return Confirmation{}, fmt.Errorf("invalid storage mode %q", req.Mode)
	}

	if err := k.durable.Set(ctx, keyProvider, string(p)); err != nil {
		return Confirmation{}, fmt.Errorf("save provider: %w", err)
	}
	if err := k.durable.Set(ctx, keyMode, string(mode)); err != nil {
		return Confirmation{}, fmt.Errorf("save storage mode: %w", err)
	}

	target, other := k.storeFor(mode), k.storeFor(opposite(mode))
	values := map[llm.Provider]string{
		llm.ProviderOpenAI: strings.TrimSpace(req.OpenAIKey),
		llm.ProviderGemini: strings.TrimSpace(req.GeminiKey),
	}
	for _, prov := range llm.Providers() {
		name := apiKeyName(prov)
		if v := values[prov]; v != "" {
			if err := target.Set(ctx, name, v); err != nil {
				return Confirmation{}, fmt.Errorf("save %s key: %w", prov, err)
			}
			continue
		}
		if err := target.Delete(ctx, name); err != nil {
			return Confirmation{}, fmt.Errorf("clear %s key: %w", prov, err)
		}
	}
	if err := other.Delete(ctx, allKeyNames()...); err != nil {
		return Confirmation{}, fmt.Errorf("clear keys from %s store: %w", opposite(mode), err)
	}

	k.log.Info("settings saved", "provider", string(p), "mode", string(mode))
	return confirmationFor(mode), nil
}

// Settings returns the current provider, mode and which keys are present.
func (k *Keystore) Settings(ctx context.Context) Settings {
	s := Settings{
		Provider:   k.GetProvider(ctx),
		Mode:       k.GetMode(ctx),
		Configured: make(map[llm.Provider]bool, 2),
	}
	for _, p := range llm.Providers() {
		_, ok := k.GetKey(ctx, p)
		s.Configured[p] = ok
	}
	return s
}

func (k *Keystore) storeFor(m Mode) kv.Store {
	if m == ModeEphemeral {
		return k.ephemeral
	}
	return k.durable
}

func opposite(m Mode) Mode {
	if m == ModeEphemeral {
		return ModeDurable
	}
	return ModeEphemeral
}

func confirmationFor(m Mode) Confirmation {
	if m == ModeEphemeral {
		return Confirmation{Mode: m, Message: "Saved for this session only."}
	}
	return Confirmation{Mode: m, Message: "Saved to this device."}
}
