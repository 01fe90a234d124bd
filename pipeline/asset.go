package pipeline

import (
	"github.com/toppsdigital/cardsync/errors"
)

// AssetType selects the kind of digital asset to generate from
// extracted layers.
type AssetType string

const (
	AssetTypeWP            AssetType = "wp"
	AssetTypeBack          AssetType = "back"
	AssetTypeBase          AssetType = "base"
	AssetTypeParallel      AssetType = "parallel"
	AssetTypeMultiParallel AssetType = "multi-parallel"
	AssetTypeWP1of1        AssetType = "wp-1of1"
)

// ChromeSilver and ChromeSuperfractor are the named chrome treatments.
// Chrome also accepts plain boolean-ish values on the wire, so it is
// kept as a string: "", "true", "silver", "superfractor".
const (
	ChromeSilver       = "silver"
	ChromeSuperfractor = "superfractor"
)

// SpotColorPair binds one spot layer to a color for parallel assets.
type SpotColorPair struct {
	Spot  string `json:"spot"`
	Color string `json:"color"`
}

// AssetConfig describes one server-tracked asset configuration within a
// job. The server assigns AssetID; clients never invent one.
type AssetConfig struct {
	AssetID        string          `json:"asset_id,omitempty"`
	Type           AssetType       `json:"type"`
	Layer          string          `json:"layer,omitempty"`
	Spot           string          `json:"spot,omitempty"`
	Color          string          `json:"color,omitempty"`
	SpotColorPairs []SpotColorPair `json:"spot_color_pairs,omitempty"`
	VFX            string          `json:"vfx,omitempty"`
	Chrome         string          `json:"chrome,omitempty"`
	OneOfOneWP     bool            `json:"one_of_one_wp,omitempty"`
}

// Clone returns a deep copy of the asset configuration.
func (a AssetConfig) Clone() AssetConfig {
	out := a
	if a.SpotColorPairs != nil {
		out.SpotColorPairs = append([]SpotColorPair(nil), a.SpotColorPairs...)
	}
	return out
}

// Validate checks per-type required fields before a mutation is sent.
func (a AssetConfig) Validate() error {
	switch a.Type {
	case AssetTypeWP, AssetTypeBack, AssetTypeBase, AssetTypeParallel,
		AssetTypeMultiParallel, AssetTypeWP1of1:
	case "":
		return errors.NewInvalidRequestError("asset config missing type")
	default:
		return errors.NewInvalidRequestError("unknown asset type %q", a.Type)
	}

	if a.Type != AssetTypeWP && a.Type != AssetTypeWP1of1 && a.Layer == "" {
		return errors.NewInvalidRequestError("%s asset requires a layer", a.Type)
	}

	if a.Type == AssetTypeMultiParallel {
		if len(a.SpotColorPairs) < 1 || len(a.SpotColorPairs) > 3 {
			return errors.NewInvalidRequestError(
				"multi-parallel asset requires 1-3 spot/color pairs, got %d", len(a.SpotColorPairs))
		}
		for _, pair := range a.SpotColorPairs {
			if pair.Spot == "" || pair.Color == "" {
				return errors.NewInvalidRequestError("multi-parallel pair missing spot or color")
			}
		}
	}

	if a.OneOfOneWP && a.Chrome != ChromeSuperfractor {
		return errors.NewInvalidRequestError("one_of_one_wp requires superfractor chrome")
	}

	return nil
}
