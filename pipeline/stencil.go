package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
)

// StencilTest is a user stencil comparison. The IfInClip variants also
// require the clip bit when a stencil clip is active.
type StencilTest uint8

const (
	TestAlwaysIfInClip StencilTest = iota
	TestEqualIfInClip
	TestLessIfInClip
	TestLEqualIfInClip
	TestAlways
	TestNever
	TestGreater
	TestGEqual
	TestLess
	TestLEqual
	TestEqual
	TestNotEqual
)

func (t StencilTest) inClip() bool { return t <= TestLEqualIfInClip }

var stencilCompares = [...]gputypes.CompareFunction{
	TestAlwaysIfInClip: gputypes.CompareFunctionAlways,
	TestEqualIfInClip:  gputypes.CompareFunctionEqual,
	TestLessIfInClip:   gputypes.CompareFunctionLess,
	TestLEqualIfInClip: gputypes.CompareFunctionLessEqual,
	TestAlways:         gputypes.CompareFunctionAlways,
	TestNever:          gputypes.CompareFunctionNever,
	TestGreater:        gputypes.CompareFunctionGreater,
	TestGEqual:         gputypes.CompareFunctionGreaterEqual,
	TestLess:           gputypes.CompareFunctionLess,
	TestLEqual:         gputypes.CompareFunctionLessEqual,
	TestEqual:          gputypes.CompareFunctionEqual,
	TestNotEqual:       gputypes.CompareFunctionNotEqual,
}

// StencilOp is a user stencil operation. User ops touch only the user
// bits; clip ops touch the clip bit.
type StencilOp uint8

const (
	OpKeep StencilOp = iota
	OpZero
	OpReplace
	OpInvert
	OpIncWrap
	OpDecWrap
	OpIncClamp
	OpDecClamp

	OpZeroClipBit
	OpSetClipBit
	OpInvertClipBit
	OpSetClipAndReplaceUserBits
	OpZeroClipAndUserBits
)

func (o StencilOp) isClipOp() bool { return o >= OpZeroClipBit }

// UserStencilFace is the stencil behavior of one face in user bits.
type UserStencilFace struct {
	Ref       uint16
	Test      StencilTest
	TestMask  uint16
	PassOp    StencilOp
	FailOp    StencilOp
	WriteMask uint16
}

// UserStencil is the stencil requested by a draw, independent of the clip.
type UserStencil struct {
	Front, Back UserStencilFace
	TwoSided    bool
}

// IsUnused reports whether s neither tests nor writes stencil.
func (s *UserStencil) IsUnused() bool { return s == nil || *s == *StencilUnused }

// Stencil presets.
var (
	StencilUnused = &UserStencil{
		Front: UserStencilFace{Test: TestAlwaysIfInClip, TestMask: 0xffff, PassOp: OpKeep, FailOp: OpKeep},
		Back:  UserStencilFace{Test: TestAlwaysIfInClip, TestMask: 0xffff, PassOp: OpKeep, FailOp: OpKeep},
	}

	// StencilNonZeroWinding increments front faces and decrements back
	// faces.
	StencilNonZeroWinding = &UserStencil{
		Front:    UserStencilFace{Test: TestAlwaysIfInClip, TestMask: 0xffff, PassOp: OpIncWrap, FailOp: OpKeep, WriteMask: 0xffff},
		Back:     UserStencilFace{Test: TestAlwaysIfInClip, TestMask: 0xffff, PassOp: OpDecWrap, FailOp: OpKeep, WriteMask: 0xffff},
		TwoSided: true,
	}

	// StencilEvenOdd toggles the low bit.
	StencilEvenOdd = &UserStencil{
		Front: UserStencilFace{Test: TestAlwaysIfInClip, TestMask: 0xffff, PassOp: OpInvert, FailOp: OpKeep, WriteMask: 1},
		Back:  UserStencilFace{Test: TestAlwaysIfInClip, TestMask: 0xffff, PassOp: OpInvert, FailOp: OpKeep, WriteMask: 1},
	}

	// StencilCoverNonZero draws where the user bits are non-zero and
	// resets them.
	StencilCoverNonZero = &UserStencil{
		Front: UserStencilFace{Test: TestNotEqual, TestMask: 0xffff, PassOp: OpZero, FailOp: OpZero, WriteMask: 0xffff},
		Back:  UserStencilFace{Test: TestNotEqual, TestMask: 0xffff, PassOp: OpZero, FailOp: OpZero, WriteMask: 0xffff},
	}
)

// StencilFace is one resolved face in full stencil bits.
type StencilFace struct {
	Ref       uint32
	Compare   gputypes.CompareFunction
	TestMask  uint32
	PassOp    gputypes.StencilOperation
	FailOp    gputypes.StencilOperation
	WriteMask uint32
}

// StencilSettings is a UserStencil resolved against a stencil clip and a
// stencil bit depth.
type StencilSettings struct {
	enabled  bool
	twoSided bool
	front    StencilFace
	back     StencilFace
}

// Resolve packs s into numStencilBits, reserving the top bit for the clip
// when hasStencilClip is set.
func (s *UserStencil) Resolve(hasStencilClip bool, numStencilBits int) StencilSettings {
	if s.IsUnused() && !hasStencilClip {
		return StencilSettings{}
	}
	if numStencilBits <= 0 || numStencilBits > 16 {
		panic(fmt.Sprintf("pipeline: unsupported stencil depth %d", numStencilBits))
	}
	if s == nil {
		s = StencilUnused
	}
	clipBit := uint32(1) << (numStencilBits - 1)
	userMask := clipBit - 1
	st := StencilSettings{
		enabled:  true,
		twoSided: s.TwoSided && s.Front != s.Back,
		front:    resolveFace(s.Front, hasStencilClip, clipBit, userMask),
	}
	if st.twoSided {
		st.back = resolveFace(s.Back, hasStencilClip, clipBit, userMask)
		debug.Assert(st.front.TestMask == st.back.TestMask && st.front.WriteMask == st.back.WriteMask,
			"two-sided stencil faces must share masks")
	} else {
		st.back = st.front
	}
	return st
}

func resolveFace(f UserStencilFace, hasClip bool, clipBit, userMask uint32) StencilFace {
	out := StencilFace{
		Compare:  stencilCompares[f.Test],
		Ref:      uint32(f.Ref) & userMask,
		TestMask: uint32(f.TestMask) & userMask,
	}
	if f.Test.inClip() && hasClip {
		// Also require the clip bit.
		out.Ref |= clipBit
		out.TestMask |= clipBit
	}

	clipOp := f.PassOp.isClipOp()
	debug.Assert(clipOp == f.FailOp.isClipOp() || f.FailOp == OpKeep || f.PassOp == OpKeep,
		"stencil face mixes user and clip ops")
	if clipOp || f.FailOp.isClipOp() {
		out.WriteMask = clipBit
		if f.PassOp == OpSetClipAndReplaceUserBits || f.PassOp == OpZeroClipAndUserBits {
			out.WriteMask = clipBit | (uint32(f.WriteMask) & userMask)
		}
		out.PassOp = clipStencilOp(f.PassOp, &out.Ref, clipBit)
		out.FailOp = clipStencilOp(f.FailOp, &out.Ref, clipBit)
		return out
	}
	out.WriteMask = uint32(f.WriteMask) & userMask
	out.PassOp = userStencilOp(f.PassOp)
	out.FailOp = userStencilOp(f.FailOp)
	return out
}

func userStencilOp(o StencilOp) gputypes.StencilOperation {
	switch o {
	case OpZero:
		return gputypes.StencilOperationZero
	case OpReplace:
		return gputypes.StencilOperationReplace
	case OpInvert:
		return gputypes.StencilOperationInvert
	case OpIncWrap:
		return gputypes.StencilOperationIncrementWrap
	case OpDecWrap:
		return gputypes.StencilOperationDecrementWrap
	case OpIncClamp:
		return gputypes.StencilOperationIncrementClamp
	case OpDecClamp:
		return gputypes.StencilOperationDecrementClamp
	default:
		return gputypes.StencilOperationKeep
	}
}

// clipStencilOp maps a clip op onto a hardware op under a clip-bit write
// mask, adjusting the reference where the op replaces.
func clipStencilOp(o StencilOp, ref *uint32, clipBit uint32) gputypes.StencilOperation {
	switch o {
	case OpZeroClipBit, OpZeroClipAndUserBits:
		return gputypes.StencilOperationZero
	case OpSetClipBit:
		*ref |= clipBit
		return gputypes.StencilOperationReplace
	case OpInvertClipBit:
		return gputypes.StencilOperationInvert
	case OpSetClipAndReplaceUserBits:
		*ref |= clipBit
		return gputypes.StencilOperationReplace
	case OpKeep:
		return gputypes.StencilOperationKeep
	default:
		return userStencilOp(o)
	}
}

// Enabled reports whether stencil testing is on.
func (s StencilSettings) Enabled() bool { return s.enabled }

// IsTwoSided reports whether front and back differ.
func (s StencilSettings) IsTwoSided() bool { return s.twoSided }

// Front returns the front face.
func (s StencilSettings) Front() StencilFace { return s.front }

// Back returns the back face.
func (s StencilSettings) Back() StencilFace { return s.back }

// Reference returns the dynamic stencil reference value.
func (s StencilSettings) Reference() uint32 { return s.front.Ref }

// Masks returns the read and write masks shared by both faces.
func (s StencilSettings) Masks() (read, write uint32) {
	return s.front.TestMask, s.front.WriteMask
}

// Face converts f to the hardware face state.
func (f StencilFace) Face() gputypes.StencilFaceState {
	return gputypes.StencilFaceState{
		Compare:     f.Compare,
		FailOp:      f.FailOp,
		DepthFailOp: gputypes.StencilOperationKeep,
		PassOp:      f.PassOp,
	}
}

// Key packs the settings for program keys: one word per face plus the
// shared masks. The reference is dynamic state and not part of it.
func (s StencilSettings) Key() [3]uint32 {
	if !s.enabled {
		return [3]uint32{}
	}
	pack := func(f StencilFace) uint32 {
		return 1 | uint32(f.Compare)<<1 | uint32(f.PassOp)<<5 | uint32(f.FailOp)<<9 | boolBit(s.twoSided)<<13
	}
	read, write := s.Masks()
	return [3]uint32{pack(s.front), pack(s.back), read<<16 | write&0xffff}
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// AddToKey appends Key.
func (s StencilSettings) AddToKey(b *gpucore.KeyBuilder) {
	for _, w := range s.Key() {
		b.Add32(w)
	}
}
