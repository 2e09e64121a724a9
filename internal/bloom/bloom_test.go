package bloom

import "testing"

func TestInsertQueryNoFalseNegatives(t *testing.T) {
	f := NewDefault()
	keys := []uint64{0, 1, 2, 1000, 1 << 40, ^uint64(0)}
	for _, k := range keys {
		f.Insert(k)
	}
	for _, k := range keys {
		if !f.Query(k) {
			t.Fatalf("false negative for key %d", k)
		}
	}
}

func TestQueryAbsentMayBeFalseButNotLie(t *testing.T) {
	f := New(DefaultM, DefaultK)
	// Empty filter: everything must query false.
	for _, k := range []uint64{1, 2, 3} {
		if f.Query(k) {
			t.Fatalf("empty filter reported key %d present", k)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	f := NewDefault()
	for _, k := range []uint64{5, 500, 50000} {
		f.Insert(k)
	}

	buf := make([]byte, DefaultM)
	if err := f.SerializeInto(buf); err != nil {
		t.Fatalf("SerializeInto: %v", err)
	}

	g, err := DeserializeFrom(buf, DefaultK)
	if err != nil {
		t.Fatalf("DeserializeFrom: %v", err)
	}

	for _, k := range []uint64{5, 500, 50000} {
		if !g.Query(k) {
			t.Fatalf("round-tripped filter lost key %d", k)
		}
	}
}

func TestSerializeIntoWrongLength(t *testing.T) {
	f := NewDefault()
	if err := f.SerializeInto(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for mismatched buffer length")
	}
}
