package emitter

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

func (e *Emitter) xmmRegReg(as obj.As, dst, src Reg) {
	prog := e.newProg()
	prog.As = as
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

func (e *Emitter) xmmMemToReg(as obj.As, dst, base Reg, disp int32) {
	prog := e.newProg()
	prog.As = as
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = base
	prog.From.Offset = int64(disp)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

func (e *Emitter) xmmRegToMem(as obj.As, base Reg, disp int32, src Reg) {
	prog := e.newProg()
	prog.As = as
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = base
	prog.To.Offset = int64(disp)
	e.add(prog)
}

// MovUps emits `movups dst, src`.
func (e *Emitter) MovUps(dst, src Reg) { e.xmmRegReg(x86.AMOVUPS, dst, src) }

// MovUpsLoad emits `movups dst, [base+disp]`, loading a 16-byte (4-lane)
// vector from memory.
func (e *Emitter) MovUpsLoad(dst, base Reg, disp int32) {
	e.xmmMemToReg(x86.AMOVUPS, dst, base, disp)
}

// MovUpsStore emits `movups [base+disp], src`.
func (e *Emitter) MovUpsStore(base Reg, disp int32, src Reg) {
	e.xmmRegToMem(x86.AMOVUPS, base, disp, src)
}

// MovSsLoad emits `movss dst, [base+disp]`, loading a single scalar float
// and zeroing the remaining lanes.
func (e *Emitter) MovSsLoad(dst, base Reg, disp int32) {
	e.xmmMemToReg(x86.AMOVSS, dst, base, disp)
}

// MovSsStore emits `movss [base+disp], src`.
func (e *Emitter) MovSsStore(base Reg, disp int32, src Reg) {
	e.xmmRegToMem(x86.AMOVSS, base, disp, src)
}

// MovApsRegReg emits `movaps dst, src` (register-to-register vector copy).
func (e *Emitter) MovApsRegReg(dst, src Reg) { e.xmmRegReg(x86.AMOVAPS, dst, src) }

// AddPs emits `addps dst, src` (packed single-precision add, 4 lanes).
func (e *Emitter) AddPs(dst, src Reg) { e.xmmRegReg(x86.AADDPS, dst, src) }

// MulPs emits `mulps dst, src`.
func (e *Emitter) MulPs(dst, src Reg) { e.xmmRegReg(x86.AMULPS, dst, src) }

// SubPs emits `subps dst, src`.
func (e *Emitter) SubPs(dst, src Reg) { e.xmmRegReg(x86.ASUBPS, dst, src) }

// MaxPs emits `maxps dst, src`.
func (e *Emitter) MaxPs(dst, src Reg) { e.xmmRegReg(x86.AMAXPS, dst, src) }

// MinPs emits `minps dst, src`.
func (e *Emitter) MinPs(dst, src Reg) { e.xmmRegReg(x86.AMINPS, dst, src) }

// XorPs emits `xorps dst, src`; used both to zero a register (dst==src)
// and to flip a float's sign bit via a mask register (NEGATE handling).
func (e *Emitter) XorPs(dst, src Reg) { e.xmmRegReg(x86.AXORPS, dst, src) }

// AndPs emits `andps dst, src`, used to apply a per-lane compare mask.
func (e *Emitter) AndPs(dst, src Reg) { e.xmmRegReg(x86.AANDPS, dst, src) }

// AndnPs emits `andnps dst, src` (dst = ^dst & src), the complement half of
// an and/andn/or blend (blend = (a&mask) | (b&^mask)).
func (e *Emitter) AndnPs(dst, src Reg) { e.xmmRegReg(x86.AANDNPS, dst, src) }

// OrPs emits `orps dst, src`.
func (e *Emitter) OrPs(dst, src Reg) { e.xmmRegReg(x86.AORPS, dst, src) }

// UnpcklPs emits `unpcklps dst, src`, interleaving the low two lanes of
// dst and src (dst.x, src.x, dst.y, src.y); used by the SSE2
// destination-mask fallback.
func (e *Emitter) UnpcklPs(dst, src Reg) { e.xmmRegReg(x86.AUNPCKLPS, dst, src) }

// UnpckhPs emits `unpckhps dst, src`, interleaving the high two lanes of
// dst and src (dst.z, src.z, dst.w, src.w).
func (e *Emitter) UnpckhPs(dst, src Reg) { e.xmmRegReg(x86.AUNPCKHPS, dst, src) }

// UcomissRegReg emits `ucomiss a, b`, comparing scalar lane 0 and setting
// host flags.
func (e *Emitter) UcomissRegReg(a, b Reg) { e.xmmRegReg(x86.AUCOMISS, a, b) }

// Rcpss emits `rcpss dst, src`, the PICA200 RCP opcode's approximate
// scalar reciprocal.
func (e *Emitter) Rcpss(dst, src Reg) { e.xmmRegReg(x86.ARCPSS, dst, src) }

// Rsqrtss emits `rsqrtss dst, src`, the PICA200 RSQ opcode's approximate
// scalar reciprocal square root.
func (e *Emitter) Rsqrtss(dst, src Reg) { e.xmmRegReg(x86.ARSQRTSS, dst, src) }

// Sqrtss emits `sqrtss dst, src`.
func (e *Emitter) Sqrtss(dst, src Reg) { e.xmmRegReg(x86.ASQRTSS, dst, src) }

// Cvttps2dq emits `cvttps2dq dst, src` (packed float-to-int, truncating),
// used by FLR's SSE2 fallback path (truncate then correct for negatives).
func (e *Emitter) Cvttps2dq(dst, src Reg) { e.xmmRegReg(x86.ACVTTPS2DQ, dst, src) }

// Cvtdq2ps emits `cvtdq2ps dst, src` (packed int-to-float), the matching
// half of the FLR SSE2 fallback.
func (e *Emitter) Cvtdq2ps(dst, src Reg) { e.xmmRegReg(x86.ACVTDQ2PS, dst, src) }

// CmpPs emits `cmpps dst, src, imm8` for the given predicate, producing an
// all-ones/all-zeros lane mask; used by CMP, SGE/SLT, FLR's SSE2 fallback
// and the NaN-sanitising multiply.
func (e *Emitter) CmpPs(dst, src Reg, predicate uint8) {
	prog := e.newProg()
	prog.As = x86.ACMPPS
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	prog.SetFrom3Const(int64(predicate))
	e.add(prog)
}

// ShufPs emits `shufps dst, src, imm8`, used for source swizzles, lane
// broadcasts, horizontal sums and the SSE2 destination-mask fallback.
func (e *Emitter) ShufPs(dst, src Reg, order uint8) {
	prog := e.newProg()
	prog.As = x86.ASHUFPS
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	prog.SetFrom3Const(int64(order))
	e.add(prog)
}

// BlendPs emits the SSE4.1 `blendps dst, src, imm8` destination-mask fast
// path: dst's masked lanes are replaced with src's; unmasked lanes of dst
// are preserved. Callers must check HasSSE41 before emitting this.
func (e *Emitter) BlendPs(dst, src Reg, mask uint8) {
	prog := e.newProg()
	prog.As = x86.ABLENDPS
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	prog.SetFrom3Const(int64(mask))
	e.add(prog)
}

// RoundPs emits the SSE4.1 `roundps dst, src, imm8` rounding-mode-select
// instruction; FLR uses mode 1 (round toward negative infinity).
func (e *Emitter) RoundPs(dst, src Reg, mode uint8) {
	prog := e.newProg()
	prog.As = x86.AROUNDPS
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	prog.SetFrom3Const(int64(mode))
	e.add(prog)
}

// PsllDq emits `pslldq dst, imm8`, a byte-granularity left shift of the
// whole 128-bit register.
func (e *Emitter) PsllDq(dst Reg, count uint8) {
	prog := e.newProg()
	prog.As = x86.APSLLDQ
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(count)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// MovdRegToXmm emits `movd dst(xmm), src(gpr)`, the 32-bit general-purpose
// to xmm transfer used to materialise the compiler's vector constants from
// an integer bit pattern.
func (e *Emitter) MovdRegToXmm(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AMOVL
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// MovdXmmToReg emits `movd dst(gpr), src(xmm)`, the inverse transfer used
// by MOVA to store a truncated lane back into the address-register file
// as an integer.
func (e *Emitter) MovdXmmToReg(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AMOVL
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// PshufD emits `pshufd dst, src, imm8`, an integer-domain lane shuffle
// used to broadcast a constant's lane 0 across all 4 lanes and to move
// MOVA's truncated Y lane into lane 0.
func (e *Emitter) PshufD(dst, src Reg, order uint8) {
	prog := e.newProg()
	prog.As = x86.APSHUFD
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	prog.SetFrom3Const(int64(order))
	e.add(prog)
}
