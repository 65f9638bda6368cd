package controls

// RawControl is the on-disk JSON shape of one control entry within a
// DCS-BIOS control-reference file, keyed `category -> name -> RawControl`.
type RawControl struct {
	Category            string      `json:"category"`
	ControlType         string      `json:"control_type"`
	Description         string      `json:"description"`
	Identifier          string      `json:"identifier"`
	Inputs              []RawInput  `json:"inputs"`
	Outputs             []RawOutput `json:"outputs"`
	MomentaryPositions  string      `json:"momentary_positions,omitempty"`
	PhysicalVariant     string      `json:"physical_variant,omitempty"`
}

// RawInput is the on-disk JSON shape of one input definition.
type RawInput struct {
	Description string `json:"description"`
	Interface   string `json:"interface"`
	MaxValue    *int64 `json:"max_value,omitempty"`
}

// ToDef converts a RawInput into its typed InputDef.
func (r RawInput) ToDef() InputDef {
	def := InputDef{Kind: InputKind(r.Interface), Description: r.Description}
	if r.MaxValue != nil {
		def.MaxValue = *r.MaxValue
	}
	return def
}

// RawOutput is the on-disk JSON shape of one output definition.
type RawOutput struct {
	Address     uint16 `json:"address"`
	Description string `json:"description"`
	MaxValue    uint16 `json:"max_value,omitempty"`
	Mask        uint16 `json:"mask,omitempty"`
	ShiftBy     uint8  `json:"shift_by,omitempty"`
	Suffix      string `json:"suffix,omitempty"`
	Type        string `json:"type"`
	MaxLength   int    `json:"max_length,omitempty"`
}

// ToDef converts a RawOutput into its typed OutputDef.
func (r RawOutput) ToDef() OutputDef {
	return OutputDef{
		Kind:        OutputKind(r.Type),
		Address:     r.Address,
		Mask:        r.Mask,
		Shift:       r.ShiftBy,
		MaxValue:    r.MaxValue,
		MaxLength:   r.MaxLength,
		Suffix:      r.Suffix,
		Description: r.Description,
	}
}

// ToDef converts a RawControl into its typed ControlDef.
func (r RawControl) ToDef() ControlDef {
	inputs := make([]InputDef, len(r.Inputs))
	for i, in := range r.Inputs {
		inputs[i] = in.ToDef()
	}
	outputs := make([]OutputDef, len(r.Outputs))
	for i, out := range r.Outputs {
		outputs[i] = out.ToDef()
	}
	return ControlDef{
		Category:    r.Category,
		Identifier:  r.Identifier,
		Description: r.Description,
		Inputs:      inputs,
		Outputs:     outputs,
	}
}

// file is the on-disk shape of a control-reference JSON document:
// category -> control name -> RawControl.
type file map[string]map[string]RawControl

// flatten drops the category grouping and indexes every control by its
// bare name, the lookup key used at control-outputs time. An existing entry
// is never overwritten, so across the three global files the first file
// parsed wins; for a name under two categories of the same file, which one
// is kept is not defined (map iteration order).
func (f file) flatten(into map[string]RawControl) {
	for _, controls := range f {
		for name, rc := range controls {
			if _, exists := into[name]; !exists {
				into[name] = rc
			}
		}
	}
}
