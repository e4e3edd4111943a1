package nova

import "novamcp/internal/sysex"

// Param identifies a preset parameter by its snake_case name.
type Param string

// Variant is the range a conditional parameter takes for the listed selector
// values. A variant without selector values matches every value not claimed
// by another variant of the same parameter.
type Variant struct {
	When     []int
	Min, Max int
	Encoding sysex.Encoding
}

// ParamSpec is one row of the preset parameter table.
type ParamSpec struct {
	ID       Param
	Group    string
	Offset   int
	Min, Max int
	Encoding sysex.Encoding
	// Switch parameters are on when the stored value is exactly 1.
	Switch bool
	// UnsetAbove marks parameters whose out-of-range raw values mean "unset"
	// and read as 0.
	UnsetAbove bool
	// Selector names the type parameter a conditional parameter depends on.
	Selector Param
	Variants []Variant
}

const (
	TapTempo      Param = "tap_tempo"
	Routing       Param = "routing"
	LevelOutLeft  Param = "level_out_left"
	LevelOutRight Param = "level_out_right"
	MapParameter  Param = "map_parameter"
	MapMin        Param = "map_min"
	MapMid        Param = "map_mid"
	MapMax        Param = "map_max"

	CompType      Param = "comp_type"
	CompThreshold Param = "comp_threshold"
	CompRatio     Param = "comp_ratio"
	CompAttack    Param = "comp_attack"
	CompRelease   Param = "comp_release"
	CompResponse  Param = "comp_response"
	CompDrive     Param = "comp_drive"
	CompLevel     Param = "comp_level"
	CompEnabled   Param = "comp_enabled"

	DriveType    Param = "drive_type"
	DriveGain    Param = "drive_gain"
	DriveTone    Param = "drive_tone"
	BoostLevel   Param = "boost_level"
	BoostEnabled Param = "boost_enabled"
	DriveLevel   Param = "drive_level"
	DriveEnabled Param = "drive_enabled"

	ModType         Param = "mod_type"
	ModSpeed        Param = "mod_speed"
	ModDepth        Param = "mod_depth"
	ModTempo        Param = "mod_tempo"
	ModHiCut        Param = "mod_hi_cut"
	ModFeedback     Param = "mod_feedback"
	ModDelayOrRange Param = "mod_delay_or_range"
	ModWidth        Param = "mod_width"
	ModMix          Param = "mod_mix"
	ModEnabled      Param = "mod_enabled"

	DelayType            Param = "delay_type"
	DelayTime            Param = "delay_time"
	DelayTime2           Param = "delay_time2"
	DelayTempo           Param = "delay_tempo"
	DelayTempo2OrWidth   Param = "delay_tempo2_or_width"
	DelayFeedback        Param = "delay_feedback"
	DelayClipOrFeedback2 Param = "delay_clip_or_feedback2"
	DelayHiCut           Param = "delay_hi_cut"
	DelayLoCut           Param = "delay_lo_cut"
	DelayOffsetOrPan1    Param = "delay_offset_or_pan1"
	DelaySenseOrPan2     Param = "delay_sense_or_pan2"
	DelayDamp            Param = "delay_damp"
	DelayRelease         Param = "delay_release"
	DelayMix             Param = "delay_mix"
	DelayEnabled         Param = "delay_enabled"

	ReverbType      Param = "reverb_type"
	ReverbDecay     Param = "reverb_decay"
	ReverbPreDelay  Param = "reverb_pre_delay"
	ReverbShape     Param = "reverb_shape"
	ReverbSize      Param = "reverb_size"
	ReverbHiColor   Param = "reverb_hi_color"
	ReverbHiLevel   Param = "reverb_hi_level"
	ReverbLoColor   Param = "reverb_lo_color"
	ReverbLoLevel   Param = "reverb_lo_level"
	ReverbRoomLevel Param = "reverb_room_level"
	ReverbLevel     Param = "reverb_level"
	ReverbDiffuse   Param = "reverb_diffuse"
	ReverbMix       Param = "reverb_mix"
	ReverbEnabled   Param = "reverb_enabled"

	GateType      Param = "gate_type"
	GateThreshold Param = "gate_threshold"
	GateDamp      Param = "gate_damp"
	GateRelease   Param = "gate_release"
	GateEnabled   Param = "gate_enabled"
	EqEnabled     Param = "eq_enabled"
	EqFreq1       Param = "eq_freq1"
	EqGain1       Param = "eq_gain1"
	EqWidth1      Param = "eq_width1"
	EqFreq2       Param = "eq_freq2"
	EqGain2       Param = "eq_gain2"
	EqWidth2      Param = "eq_width2"
	EqFreq3       Param = "eq_freq3"
	EqGain3       Param = "eq_gain3"
	EqWidth3      Param = "eq_width3"

	PitchType             Param = "pitch_type"
	PitchVoice1           Param = "pitch_voice1"
	PitchVoice2           Param = "pitch_voice2"
	PitchPan1             Param = "pitch_pan1"
	PitchPan2             Param = "pitch_pan2"
	PitchDelay1           Param = "pitch_delay1"
	PitchDelay2           Param = "pitch_delay2"
	PitchFeedback1OrKey   Param = "pitch_feedback1_or_key"
	PitchFeedback2OrScale Param = "pitch_feedback2_or_scale"
	PitchLevel1           Param = "pitch_level1"
	PitchLevel2           Param = "pitch_level2"
	PitchDirection        Param = "pitch_direction"
	PitchRange            Param = "pitch_range"
	PitchMix              Param = "pitch_mix"
	PitchEnabled          Param = "pitch_enabled"
)

const (
	large  = sysex.LargeOffset
	simple = sysex.SimpleOffset
)

func u(id Param, group string, off, min, max int) ParamSpec {
	return ParamSpec{ID: id, Group: group, Offset: off, Min: min, Max: max}
}

func s(id Param, group string, off, min, max int, enc sysex.Encoding) ParamSpec {
	return ParamSpec{ID: id, Group: group, Offset: off, Min: min, Max: max, Encoding: enc}
}

func sw(id Param, group string, off int) ParamSpec {
	return ParamSpec{ID: id, Group: group, Offset: off, Min: 0, Max: 1, Switch: true}
}

func cond(id Param, group string, off int, sel Param, variants ...Variant) ParamSpec {
	return ParamSpec{ID: id, Group: group, Offset: off, Selector: sel, Variants: variants}
}

func when(min, max int, enc sysex.Encoding, sel ...int) Variant {
	return Variant{When: sel, Min: min, Max: max, Encoding: enc}
}

// Params is the preset parameter table in wire order.
var Params = []ParamSpec{
	u(TapTempo, "global", 38, 100, 3000),
	u(Routing, "global", 42, 0, 2),
	s(LevelOutLeft, "global", 46, -100, 0, simple),
	s(LevelOutRight, "global", 50, -100, 0, simple),
	{ID: MapParameter, Group: "global", Offset: 54, Min: 0, Max: 127, UnsetAbove: true},
	u(MapMin, "global", 58, 0, 100),
	u(MapMid, "global", 62, 0, 100),
	u(MapMax, "global", 66, 0, 100),

	u(CompType, "comp", 70, 0, 2),
	s(CompThreshold, "comp", 74, -30, 0, simple),
	u(CompRatio, "comp", 78, 0, 15),
	u(CompAttack, "comp", 82, 0, 16),
	u(CompRelease, "comp", 86, 13, 23),
	u(CompResponse, "comp", 90, 0, 10),
	u(CompDrive, "comp", 94, 0, 20),
	s(CompLevel, "comp", 98, -12, 12, large),
	sw(CompEnabled, "comp", 130),

	u(DriveType, "drive", 134, 0, 1),
	u(DriveGain, "drive", 138, 0, 100),
	u(DriveTone, "drive", 142, 0, 100),
	u(BoostLevel, "drive", 182, 0, 10),
	sw(BoostEnabled, "drive", 186),
	s(DriveLevel, "drive", 190, -100, 0, simple),
	sw(DriveEnabled, "drive", 194),

	u(ModType, "mod", 198, 0, 5),
	u(ModSpeed, "mod", 202, 0, 81),
	u(ModDepth, "mod", 206, 0, 100),
	u(ModTempo, "mod", 210, 0, 16),
	u(ModHiCut, "mod", 214, 0, 61),
	s(ModFeedback, "mod", 218, -100, 100, large),
	cond(ModDelayOrRange, "mod", 222, ModType,
		when(0, 500, sysex.Unsigned, 0, 1),
		when(0, 1, sysex.Unsigned, 3, 4)),
	u(ModWidth, "mod", 238, 0, 100),
	u(ModMix, "mod", 250, 0, 100),
	sw(ModEnabled, "mod", 258),

	u(DelayType, "delay", 262, 0, 5),
	u(DelayTime, "delay", 266, 0, 1800),
	u(DelayTime2, "delay", 270, 0, 1800),
	u(DelayTempo, "delay", 274, 0, 16),
	cond(DelayTempo2OrWidth, "delay", 278, DelayType,
		when(0, 16, sysex.Unsigned, 4),
		when(0, 100, sysex.Unsigned, 5)),
	u(DelayFeedback, "delay", 282, 0, 120),
	cond(DelayClipOrFeedback2, "delay", 286, DelayType,
		when(0, 24, sysex.Unsigned, 1, 2),
		when(0, 120, sysex.Unsigned, 4)),
	u(DelayHiCut, "delay", 290, 0, 61),
	u(DelayLoCut, "delay", 294, 0, 61),
	cond(DelayOffsetOrPan1, "delay", 298, DelayType,
		when(-200, 200, large, 3),
		when(-50, 50, large, 4)),
	cond(DelaySenseOrPan2, "delay", 302, DelayType,
		when(-50, 0, simple, 3),
		when(-50, 50, large, 4)),
	u(DelayDamp, "delay", 306, 0, 100),
	cond(DelayRelease, "delay", 310, DelayType,
		when(11, 21, sysex.Unsigned, 3)),
	u(DelayMix, "delay", 314, 0, 100),
	sw(DelayEnabled, "delay", 322),

	u(ReverbType, "reverb", 326, 0, 3),
	u(ReverbDecay, "reverb", 330, 1, 200),
	u(ReverbPreDelay, "reverb", 334, 0, 100),
	u(ReverbShape, "reverb", 338, 0, 2),
	u(ReverbSize, "reverb", 342, 0, 7),
	u(ReverbHiColor, "reverb", 346, 0, 6),
	s(ReverbHiLevel, "reverb", 350, -25, 25, large),
	u(ReverbLoColor, "reverb", 354, 0, 6),
	s(ReverbLoLevel, "reverb", 358, -25, 25, large),
	s(ReverbRoomLevel, "reverb", 362, -100, 0, simple),
	s(ReverbLevel, "reverb", 366, -100, 0, simple),
	s(ReverbDiffuse, "reverb", 370, -25, 25, large),
	u(ReverbMix, "reverb", 374, 0, 100),
	sw(ReverbEnabled, "reverb", 386),

	u(GateType, "gate", 390, 0, 1),
	s(GateThreshold, "gate", 394, -60, 0, simple),
	u(GateDamp, "gate", 398, 0, 90),
	u(GateRelease, "gate", 402, 0, 200),
	sw(EqEnabled, "eq", 406),
	u(EqFreq1, "eq", 410, 25, 210),
	s(EqGain1, "eq", 414, -12, 12, large),
	u(EqWidth1, "eq", 418, 5, 12),
	u(EqFreq2, "eq", 422, 25, 210),
	s(EqGain2, "eq", 426, -12, 12, large),
	u(EqWidth2, "eq", 430, 5, 12),
	u(EqFreq3, "eq", 434, 25, 210),
	s(EqGain3, "eq", 438, -12, 12, large),
	u(EqWidth3, "eq", 442, 5, 12),
	sw(GateEnabled, "gate", 450),

	u(PitchType, "pitch", 454, 0, 4),
	cond(PitchVoice1, "pitch", 458, PitchType,
		when(-13, 13, large, 4),
		when(-100, 100, large)),
	cond(PitchVoice2, "pitch", 462, PitchType,
		when(-13, 13, large, 4),
		when(-100, 100, large)),
	s(PitchPan1, "pitch", 466, -50, 50, large),
	s(PitchPan2, "pitch", 470, -50, 50, large),
	u(PitchDelay1, "pitch", 474, 0, 50),
	u(PitchDelay2, "pitch", 478, 0, 50),
	cond(PitchFeedback1OrKey, "pitch", 482, PitchType,
		when(0, 12, sysex.Unsigned, 4),
		when(0, 100, sysex.Unsigned)),
	cond(PitchFeedback2OrScale, "pitch", 486, PitchType,
		when(0, 13, sysex.Unsigned, 4),
		when(0, 100, sysex.Unsigned)),
	s(PitchLevel1, "pitch", 490, -100, 0, simple),
	cond(PitchLevel2, "pitch", 494, PitchType,
		when(0, 1, sysex.Unsigned, 1, 2).inactive(),
		when(-100, 0, simple)),
	cond(PitchDirection, "pitch", 494, PitchType,
		when(0, 1, sysex.Unsigned, 1, 2)),
	cond(PitchRange, "pitch", 498, PitchType,
		when(1, 2, sysex.Unsigned, 1, 2)),
	u(PitchMix, "pitch", 502, 0, 100),
	sw(PitchEnabled, "pitch", 514),
}

// inactive turns a variant into a claim on its selector values that leaves
// the parameter unused, so a catch-all variant does not match them.
func (v Variant) inactive() Variant {
	v.Min, v.Max = 1, 0
	return v
}

func (v Variant) active() bool {
	return v.Min <= v.Max
}

var paramIndex = func() map[Param]int {
	idx := make(map[Param]int, len(Params))
	for i, p := range Params {
		idx[p.ID] = i
	}
	return idx
}()

// Lookup returns the table row for id.
func Lookup(id Param) (ParamSpec, bool) {
	i, ok := paramIndex[id]
	if !ok {
		return ParamSpec{}, false
	}
	return Params[i], true
}

// ParamIDs lists every parameter id in table order.
func ParamIDs() []Param {
	ids := make([]Param, len(Params))
	for i, p := range Params {
		ids[i] = p.ID
	}
	return ids
}

// Dependents returns the parameters whose range is chosen by sel.
func Dependents(sel Param) []Param {
	var out []Param
	for _, p := range Params {
		if p.Selector == sel {
			out = append(out, p.ID)
		}
	}
	return out
}

// Conditional reports whether the parameter's range depends on another.
func (p ParamSpec) Conditional() bool {
	return p.Selector != ""
}

// Resolve returns the effective range and encoding for the given selector
// value. ok is false when the parameter is unused for that selector value.
func (p ParamSpec) Resolve(selector int) (min, max int, enc sysex.Encoding, ok bool) {
	if !p.Conditional() {
		return p.Min, p.Max, p.Encoding, true
	}
	var fallback *Variant
	for i := range p.Variants {
		v := &p.Variants[i]
		if len(v.When) == 0 {
			fallback = v
			continue
		}
		for _, w := range v.When {
			if w == selector {
				return v.Min, v.Max, v.Encoding, v.active()
			}
		}
	}
	if fallback != nil {
		return fallback.Min, fallback.Max, fallback.Encoding, fallback.active()
	}
	return 0, 0, sysex.Unsigned, false
}

// Groups returns the parameter groups in table order.
func Groups() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range Params {
		if !seen[p.Group] {
			seen[p.Group] = true
			out = append(out, p.Group)
		}
	}
	return out
}
