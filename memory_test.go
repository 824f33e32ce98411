package wg86

import "testing"

// ============================================================================
// Segment wrap
// ============================================================================

func TestSegmentedMemory_WordAccessWrapsAtSegmentBoundary(t *testing.T) {
	m := NewSegmentedMemory()
	m.AddSegment(0x1000, SegmentData, nil)

	if err := m.SetWord(0x1000, 0xFFFF, 0xBEEF); err != nil {
		t.Fatalf("SetWord at 0xFFFF: %v", err)
	}
	lo, err := m.GetByte(0x1000, 0xFFFF)
	if err != nil {
		t.Fatalf("GetByte 0xFFFF: %v", err)
	}
	hi, err := m.GetByte(0x1000, 0x0000)
	if err != nil {
		t.Fatalf("GetByte 0x0000: %v", err)
	}
	if lo != 0xEF || hi != 0xBE {
		t.Fatalf("word write at 0xFFFF wrapped wrong: low=%02X high=%02X, want EF/BE", lo, hi)
	}

	got, err := m.GetWord(0x1000, 0xFFFF)
	if err != nil {
		t.Fatalf("GetWord 0xFFFF: %v", err)
	}
	if got != 0xBEEF {
		t.Errorf("GetWord(0xFFFF) = %04X, want BEEF", got)
	}
}

func TestSegmentedMemory_ByteBeyondEndOfSegmentIsSeparateSegment(t *testing.T) {
	m := NewSegmentedMemory()
	m.AddSegment(0x2000, SegmentData, []byte{0xAA})
	m.AddSegment(0x2001, SegmentData, []byte{0xBB})

	b, err := m.GetByte(0x2000, 0)
	if err != nil || b != 0xAA {
		t.Fatalf("GetByte(0x2000,0) = %02X, %v, want AA, nil", b, err)
	}
	// Segments never linearize into each other: reading past a
	// segment's own bytes stays zero-filled within that segment.
	b, err = m.GetByte(0x2000, 1)
	if err != nil || b != 0 {
		t.Fatalf("GetByte(0x2000,1) = %02X, %v, want 00, nil", b, err)
	}
}

// ============================================================================
// Relocation redirection
// ============================================================================

func TestSegmentedMemory_ReadOperandWordRedirectsSentinel(t *testing.T) {
	m := NewSegmentedMemory()
	m.AddSegment(0x1000, SegmentData, []byte{0xFF, 0xFF})
	rec := &RelocationRecord{
		OffsetWithinSegment: 0,
		Kind:                InternalReference,
		Target:              RelocationTarget{Segment: 0x2000, Offset: 0x1234},
	}
	if err := m.AddRelocation(0x1000, rec); err != nil {
		t.Fatalf("AddRelocation: %v", err)
	}

	got, err := m.ReadOperandWord(0x1000, 0)
	if err != nil {
		t.Fatalf("ReadOperandWord: %v", err)
	}
	if got != 0x1234 {
		t.Errorf("ReadOperandWord at a relocated offset = %04X, want 1234", got)
	}

	// A plain GetWord (the raw decode path) must still see the on-disk
	// sentinel bytes untouched.
	raw, err := m.GetWord(0x1000, 0)
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if raw != 0xFFFF {
		t.Errorf("GetWord at a relocated offset = %04X, want FFFF (raw bytes unaffected)", raw)
	}
}

func TestSegmentedMemory_ReadOperandDwordUsesBothHalves(t *testing.T) {
	m := NewSegmentedMemory()
	m.AddSegment(0x1000, SegmentData, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	rec := &RelocationRecord{
		OffsetWithinSegment: 0,
		Kind:                ImportedOrdinal,
		Target:              RelocationTarget{ImportOrdinal: 3, FunctionOrdinal: 42},
	}
	if err := m.AddRelocation(0x1000, rec); err != nil {
		t.Fatalf("AddRelocation: %v", err)
	}
	got, err := m.ReadOperandDword(0x1000, 0)
	if err != nil {
		t.Fatalf("ReadOperandDword: %v", err)
	}
	wantLow, wantHigh := uint32(42), uint32(3)
	if got != wantLow|wantHigh<<16 {
		t.Errorf("ReadOperandDword = %08X, want low=%04X high=%04X", got, wantLow, wantHigh)
	}
}

// ============================================================================
// Decoded-instruction cache
// ============================================================================

func TestSegmentedMemory_InstructionCacheInvalidatedByWrite(t *testing.T) {
	m := NewSegmentedMemory()
	// B0 12       MOV AL, 0x12
	// 90          NOP
	m.AddSegment(0x1000, SegmentCode, []byte{0xB0, 0x12, 0x90})

	first, err := m.GetInstruction(0x1000, 0)
	if err != nil {
		t.Fatalf("GetInstruction: %v", err)
	}
	if first.Op.String() != "MOV" {
		t.Fatalf("first decode = %v, want MOV", first.Op)
	}

	if err := m.SetByte(0x1000, 0, 0x90); err != nil {
		t.Fatalf("SetByte: %v", err)
	}
	second, err := m.GetInstruction(0x1000, 0)
	if err != nil {
		t.Fatalf("GetInstruction after write: %v", err)
	}
	if second.Op.String() != "NOP" {
		t.Errorf("decode after write = %v, want NOP (cache should have been invalidated)", second.Op)
	}
}

func TestSegmentedMemory_InstructionCacheHitReturnsSameDecode(t *testing.T) {
	m := NewSegmentedMemory()
	m.AddSegment(0x1000, SegmentCode, []byte{0x90})
	a, err := m.GetInstruction(0x1000, 0)
	if err != nil {
		t.Fatalf("GetInstruction: %v", err)
	}
	b, err := m.GetInstruction(0x1000, 0)
	if err != nil {
		t.Fatalf("GetInstruction (cached): %v", err)
	}
	if a != b {
		t.Error("second GetInstruction call did not return the cached pointer")
	}
}

// ============================================================================
// FarPointer equality
// ============================================================================

func TestFarPointer_ComparesBothFields(t *testing.T) {
	a := FarPointer{Segment: 0x1000, Offset: 0x0010}
	b := FarPointer{Segment: 0x0FFF, Offset: 0x0020}
	// segment*16+offset would linearize both to 0x10010; the module must
	// never treat these as equal.
	if a == b {
		t.Error("two far pointers with the same linear address compared equal")
	}
	c := FarPointer{Segment: 0x1000, Offset: 0x0010}
	if a != c {
		t.Error("identical far pointers compared unequal")
	}
}
