package compiler

import (
	"github.com/n3ds-emu/pica200jit/emitter"
)

// blendMaskOrder converts a dest_mask nibble into the bit order `blendps`
// expects. blendps takes lane i from src when immediate bit i is set, and
// SwizzlePattern.DestMask already uses bit 0 = X .. bit 3 = W, so the
// nibble is used as is.
func blendMaskOrder(m uint8) uint8 {
	return m & 0xF
}

// sse2ShuffleSelector builds the shufps(lo, hi, sel) selector that, given
// lo = unpcklps(dest, src) and hi = unpckhps(dest, src), picks src's lane
// wherever destMask enables the component and dest's lane otherwise. See
// writeDest for the derivation.
func sse2ShuffleSelector(destMask uint8) uint8 {
	var sel uint8
	if destMask&0b0001 != 0 { // X
		sel |= 1 << 0
	}
	if destMask&0b0010 != 0 { // Y
		sel |= 3 << 2
	} else {
		sel |= 2 << 2
	}
	if destMask&0b0100 != 0 { // Z
		sel |= 1 << 4
	}
	if destMask&0b1000 != 0 { // W
		sel |= 3 << 6
	} else {
		sel |= 2 << 6
	}
	return sel
}

// destAddress resolves a dest register index (0..31, temps and outputs
// share the low index space the way PICA's common/MAD families encode
// them) to a base register and byte displacement in the unit-state block.
func destAddress(dest uint32) (base emitter.Reg, disp int32) {
	if dest < 16 {
		return regUnit, int32(tempBase + dest*vectorStride)
	}
	return regUnit, int32(outputBase + (dest-16)*vectorStride)
}

// writeDest stores src to the destination register per the operand
// descriptor's dest_mask, per spec.md §4.4.4.
func (cs *compileState) writeDest(dest uint32, destMask uint8, src emitter.Reg) {
	e := cs.e
	base, disp := destAddress(dest)

	if destMask == 0b1111 {
		e.MovUpsStore(base, disp, src)
		return
	}

	if e.HasSSE41() {
		e.MovUpsLoad(xScratch2, base, disp)
		e.BlendPs(xScratch2, src, blendMaskOrder(destMask))
		e.MovUpsStore(base, disp, xScratch2)
		return
	}

	// SSE2 fallback: unpcklps/unpckhps interleave dest and src, then a
	// single shufps re-selects dest's or src's lane per component.
	e.MovUpsLoad(xScratch1, base, disp) // xScratch1 = dest (becomes lo)
	e.MovApsRegReg(xScratch2, xScratch1)
	hi := xScratch2
	e.UnpckhPs(hi, src)        // hi = [dest.z, src.z, dest.w, src.w]
	e.UnpcklPs(xScratch1, src) // xScratch1 (lo) = [dest.x, src.x, dest.y, src.y]
	e.ShufPs(xScratch1, hi, sse2ShuffleSelector(destMask))
	e.MovUpsStore(base, disp, xScratch1)
}

// blendPsFallback computes dst = blend(dst, src, mask) (dst's lane kept
// wherever mask is clear, src's lane taken wherever it's set) using the same
// unpcklps/unpckhps/shufps sequence writeDest uses, for arithmetic lowerings
// that need a BlendPs-equivalent without SSE4.1. src must not alias
// xScratch1 or xScratch2; dst may alias xScratch1.
func (cs *compileState) blendPsFallback(dst, src emitter.Reg, mask uint8) {
	e := cs.e
	e.MovApsRegReg(xScratch1, dst) // lo, becomes [dst.x, src.x, dst.y, src.y]
	e.MovApsRegReg(xScratch2, dst)
	e.UnpckhPs(xScratch2, src) // hi = [dst.z, src.z, dst.w, src.w]
	e.UnpcklPs(xScratch1, src)
	e.ShufPs(xScratch1, xScratch2, sse2ShuffleSelector(mask))
	e.MovApsRegReg(dst, xScratch1)
}
