package record

import (
	"testing"
)

func TestValueConstructorsAndAccessors(t *testing.T) {
	n := Number(42.5)
	if f, err := n.AsNumber(); err != nil || f != 42.5 {
		t.Errorf("AsNumber() = %v, %v", f, err)
	}
	if _, err := n.AsString(); err == nil {
		t.Error("AsString() on a number should fail")
	}

	s := String("compressor")
	if got, err := s.AsString(); err != nil || got != "compressor" {
		t.Errorf("AsString() = %v, %v", got, err)
	}

	b := Bool(true)
	if got, err := b.AsBool(); err != nil || !got {
		t.Errorf("AsBool() = %v, %v", got, err)
	}

	e := Expression("100 bar")
	if got, err := e.AsExpression(); err != nil || got != "100 bar" {
		t.Errorf("AsExpression() = %v, %v", got, err)
	}
	if _, err := e.AsString(); err == nil {
		t.Error("AsString() on an expression should fail")
	}
}

func TestFromAnyClassification(t *testing.T) {
	cases := []struct {
		in   any
		kind ValueKind
	}{
		{42.0, KindNumber},
		{int64(7), KindNumber},
		{true, KindBool},
		{"steel", KindString},
		{"100 bar", KindExpression},
		{"20*MW", KindExpression},
		{"-5 degC", KindExpression},
		{"1.5e3 kg/h", KindExpression},
		{"", KindString},
		{"-", KindString},
	}
	for _, tc := range cases {
		v, err := FromAny(tc.in)
		if err != nil {
			t.Fatalf("FromAny(%v): %v", tc.in, err)
		}
		if v.Kind != tc.kind {
			t.Errorf("FromAny(%v).Kind = %v, want %v", tc.in, v.Kind, tc.kind)
		}
	}

	if _, err := FromAny([]string{"no"}); err == nil {
		t.Error("FromAny on a slice should fail")
	}
}

func TestInterfaceRoundTrip(t *testing.T) {
	for _, v := range []Value{Number(3), String("x"), Bool(false), Expression("2 m")} {
		back, err := FromAny(v.Interface())
		if err != nil {
			t.Fatalf("round trip of %v: %v", v, err)
		}
		if !back.Equal(v) {
			t.Errorf("round trip of %v produced %v", v, back)
		}
	}
}

func TestPropertiesOrderAndClone(t *testing.T) {
	p := NewProperties()
	p.Set("pressure", Expression("100 bar"))
	p.Set("material", String("steel"))
	p.Set("stages", Number(3))
	p.Set("pressure", Expression("120 bar")) // replace keeps position

	want := []string{"pressure", "material", "stages"}
	got := p.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	clone := p.Clone()
	clone.Set("material", String("titanium"))
	if v, _ := p.Get("material"); v != String("steel") {
		t.Error("mutating a clone changed the original")
	}
	if !p.Equal(p.Clone()) {
		t.Error("clone is not Equal to original")
	}
	if p.Equal(clone) {
		t.Error("diverged clone still Equal to original")
	}
}

func TestPropertiesDelete(t *testing.T) {
	p := NewProperties()
	p.Set("a", Number(1))
	p.Set("b", Number(2))
	p.Delete("a")
	p.Delete("a") // idempotent
	if p.Has("a") || p.Len() != 1 {
		t.Errorf("after delete: Has(a)=%v Len=%d", p.Has("a"), p.Len())
	}
	if p.Names()[0] != "b" {
		t.Errorf("order broken after delete: %v", p.Names())
	}
}
