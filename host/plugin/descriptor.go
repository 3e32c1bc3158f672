package plugin

import (
	"errors"
	"fmt"
)

// Descriptor identifies a plugin type well enough for its format to
// instantiate it again. Descriptors are values; treat them as immutable.
type Descriptor struct {
	Name         string `yaml:"name"                    bson:"name"`
	Format       string `yaml:"format"                  bson:"format"`
	Version      string `yaml:"version,omitempty"       bson:"version,omitempty"`
	UID          string `yaml:"uid,omitempty"           bson:"uid,omitempty"`
	Path         string `yaml:"path,omitempty"          bson:"path,omitempty"`
	Manufacturer string `yaml:"manufacturer,omitempty"  bson:"manufacturer,omitempty"`
	Category     string `yaml:"category,omitempty"      bson:"category,omitempty"`
	NumInputs    int    `yaml:"num_inputs"              bson:"numInputs"`
	NumOutputs   int    `yaml:"num_outputs"             bson:"numOutputs"`
	IsInstrument bool   `yaml:"is_instrument,omitempty" bson:"isInstrument,omitempty"`
}

var (
	errNoFormat   = errors.New("descriptor has no format")
	errNoIdentity = errors.New("descriptor has neither uid nor path")
)

// Identifier returns the catalog identity of the plugin type:
// "format:uid", or "format:path" when no UID is known.
func (d Descriptor) Identifier() string {
	if d.UID != "" {
		return d.Format + ":" + d.UID
	}

	return d.Format + ":" + d.Path
}

// Validate checks that the descriptor carries enough identity to be
// instantiated.
func (d Descriptor) Validate() error {
	if d.Format == "" {
		return fmt.Errorf("plugin: %q: %w", d.Name, errNoFormat)
	}

	if d.UID == "" && d.Path == "" {
		return fmt.Errorf("plugin: %q: %w", d.Name, errNoIdentity)
	}

	return nil
}

// String returns a short human-readable label.
func (d Descriptor) String() string {
	if d.Version == "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.Format)
	}

	return fmt.Sprintf("%s %s (%s)", d.Name, d.Version, d.Format)
}
