// Package document parses persisted day documents and migrates older
// schema shapes to the current one. Migration is a chain of pure step
// functions, one per version transition, applied in sequence; the chain
// is idempotent, so normalizing a current document is a no-op.
//
// Known shapes:
//
//	v1: shuttlecockPrice, courtFee scalar, players, games
//	v2: adds courtSetup (entries may carry a legacy fractional "hours"
//	    field), paidPlayers may be absent
//	v3: current, as serialized by model.AppData
//
// Stored documents carry no version tag, so the version is detected
// from shape before the chain runs.
package document

import (
	"encoding/json"
	"math"

	"github.com/rs/zerolog/log"

	"badminton-expense-bot/internal/model"
)

// CurrentVersion is the schema version this build reads and writes.
const CurrentVersion = 3

// migrations[i] transforms a version i+1 document into version i+2.
var migrations = []func(map[string]any) map[string]any{
	migrateV1toV2,
	migrateV2toV3,
}

// Parse decodes raw JSON into a well-formed AppData. It never fails:
// undecodable input yields the default document.
func Parse(raw []byte) *model.AppData {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		log.Warn().Err(err).Msg("Stored document unreadable, using defaults")
		return model.NewAppData()
	}
	return FromMap(doc)
}

// FromMap migrates a decoded document to the current version and binds
// it to AppData. Undecodable results yield the default document.
func FromMap(doc map[string]any) *model.AppData {
	doc = Migrate(doc)

	buf, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Msg("Migrated document unencodable, using defaults")
		return model.NewAppData()
	}
	data := model.NewAppData()
	if err := json.Unmarshal(buf, data); err != nil {
		log.Warn().Err(err).Msg("Migrated document does not bind, using defaults")
		return model.NewAppData()
	}
	if data.Players == nil {
		data.Players = []string{}
	}
	if data.Games == nil {
		data.Games = []model.Game{}
	}
	if data.PaidPlayers == nil {
		data.PaidPlayers = []string{}
	}
	if data.CourtSetup.Entries == nil {
		data.CourtSetup.Entries = []model.CourtSetupEntry{}
	}
	return data
}

// Migrate applies the step chain from the detected version up to
// CurrentVersion. The input map is not modified.
func Migrate(doc map[string]any) map[string]any {
	out := cloneMap(doc)
	for v := detectVersion(out); v < CurrentVersion; v++ {
		out = migrations[v-1](out)
	}
	return out
}

// detectVersion sniffs a document's schema version from its shape.
func detectVersion(doc map[string]any) int {
	setup, ok := doc["courtSetup"].(map[string]any)
	if !ok {
		return 1
	}
	if _, hasPaid := doc["paidPlayers"].([]any); !hasPaid {
		return 2
	}
	if _, hasFee := doc["courtFee"]; hasFee {
		return 2
	}
	if entries, ok := setup["entries"].([]any); ok {
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if _, legacy := entry["hours"]; legacy {
				return 2
			}
		}
	}
	return CurrentVersion
}

// migrateV1toV2 backfills the court setup aggregate on documents that
// predate it. The courtFee scalar survives until the next step so the
// chain stays one concern per transition.
func migrateV1toV2(doc map[string]any) map[string]any {
	if _, ok := doc["courtSetup"].(map[string]any); !ok {
		doc["courtSetup"] = map[string]any{
			"ratePerHour": float64(0),
			"entries":     []any{},
		}
	}
	return doc
}

// migrateV2toV3 rewrites legacy duration entries as midnight-anchored
// intervals, drops the superseded courtFee scalar, and guarantees a
// paidPlayers list.
func migrateV2toV3(doc map[string]any) map[string]any {
	delete(doc, "courtFee")

	if _, ok := doc["paidPlayers"].([]any); !ok {
		doc["paidPlayers"] = []any{}
	}

	setup, ok := doc["courtSetup"].(map[string]any)
	if !ok {
		return doc
	}
	entries, ok := setup["entries"].([]any)
	if !ok {
		setup["entries"] = []any{}
		return doc
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		hours, legacy := entry["hours"].(float64)
		if !legacy {
			continue
		}
		// Reinterpret a bare duration as an interval starting at midnight.
		whole := math.Floor(hours)
		entry["startHour"] = float64(0)
		entry["startMinute"] = float64(0)
		entry["endHour"] = whole
		entry["endMinute"] = math.Round((hours - whole) * 60)
		delete(entry, "hours")
	}
	return doc
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
