package engine

import (
	"sync"
	"testing"
)

func TestSlots_Basic(t *testing.T) {
	var s slots[string]

	ref := s.put("value")
	if ref == NullRef {
		t.Fatal("Expected non-null ref")
	}

	v, ok := s.get(ref)
	if !ok || v != "value" {
		t.Fatalf("get = %q, %v", v, ok)
	}

	v, ok = s.drop(ref)
	if !ok || v != "value" {
		t.Fatalf("drop = %q, %v", v, ok)
	}

	if _, ok := s.get(ref); ok {
		t.Fatal("Expected get to fail after drop")
	}
	if _, ok := s.drop(ref); ok {
		t.Fatal("Expected second drop to fail")
	}
}

func TestSlots_InvalidRefs(t *testing.T) {
	var s slots[int]
	s.put(1)

	for _, ref := range []Ref{NullRef, 2, 1 << 40} {
		if _, ok := s.get(ref); ok {
			t.Errorf("get(%d) should fail", ref)
		}
		if _, ok := s.drop(ref); ok {
			t.Errorf("drop(%d) should fail", ref)
		}
	}
}

func TestSlots_ReusesFreedRefs(t *testing.T) {
	var s slots[int]

	a := s.put(1)
	b := s.put(2)
	s.drop(a)

	c := s.put(3)
	if c != a {
		t.Fatalf("Expected freed ref %d to be reused, got %d", a, c)
	}
	if v, _ := s.get(c); v != 3 {
		t.Fatalf("Reused slot holds %d, want 3", v)
	}
	if v, _ := s.get(b); v != 2 {
		t.Fatalf("Other slot changed: %d", v)
	}
	if s.len() != 2 {
		t.Fatalf("len = %d, want 2", s.len())
	}
}

func TestSlots_Concurrent(t *testing.T) {
	var s slots[int]
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ref := s.put(i)
				if v, ok := s.get(ref); !ok || v != i {
					t.Errorf("get(%d) = %d, %v", ref, v, ok)
					return
				}
				s.drop(ref)
			}
		}(i)
	}
	wg.Wait()

	if s.len() != 0 {
		t.Fatalf("len = %d after all drops", s.len())
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "pdfcpu", "PDFCPU"} {
		e, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if e.Name() != NamePDFCPU {
			t.Errorf("ByName(%q).Name() = %q", name, e.Name())
		}
	}

	if _, err := ByName("mupdf"); err == nil {
		t.Error("ByName should reject unknown engines")
	}
}

func TestCodeString(t *testing.T) {
	if CodeEncrypted.String() != "encrypted, password required" {
		t.Errorf("CodeEncrypted = %q", CodeEncrypted.String())
	}
	if Code(99).String() != "unknown" {
		t.Errorf("Code(99) = %q", Code(99).String())
	}
}
