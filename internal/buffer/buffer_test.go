package buffer

import "testing"

func TestAddDeduplicatesTimestampLabelPairs(t *testing.T) {
	s := NewStore()
	key := Key{Channel: "C001", ThreadRoot: "100.000100"}

	s.Add(key, Fragment{Label: "主題", Text: "first", Timestamp: "100.000100", Author: "U1"})
	s.Add(key, Fragment{Label: "主題", Text: "duplicate", Timestamp: "100.000100", Author: "U1"})
	s.Add(key, Fragment{Label: "検討", Text: "same ts, other label", Timestamp: "100.000100", Author: "U2"})
	s.Add(key, Fragment{Label: "主題", Text: "other ts", Timestamp: "100.000200", Author: "U1"})

	got := s.List(key)
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct fragments, got %d", len(got))
	}
	if got[0].Text != "first" {
		t.Fatalf("duplicate add must not replace the stored fragment, got %q", got[0].Text)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	key := Key{Channel: "C001", ThreadRoot: "1.0"}

	// Out-of-order arrival relative to timestamps is legal.
	s.Add(key, Fragment{Label: "A", Timestamp: "3.0"})
	s.Add(key, Fragment{Label: "B", Timestamp: "1.0"})
	s.Add(key, Fragment{Label: "A", Timestamp: "2.0"})

	got := s.List(key)
	want := []string{"3.0", "1.0", "2.0"}
	for i, ts := range want {
		if got[i].Timestamp != ts {
			t.Fatalf("position %d: want ts %s, got %s", i, ts, got[i].Timestamp)
		}
	}
}

func TestClearEmptiesOnlyOneKey(t *testing.T) {
	s := NewStore()
	k1 := Key{Channel: "C001", ThreadRoot: "1.0"}
	k2 := Key{Channel: "C001", ThreadRoot: "2.0"}
	s.Add(k1, Fragment{Label: "A", Timestamp: "1.0"})
	s.Add(k2, Fragment{Label: "A", Timestamp: "2.0"})

	s.Clear(k1)
	if len(s.List(k1)) != 0 {
		t.Fatalf("cleared key still has fragments")
	}
	if len(s.List(k2)) != 1 {
		t.Fatalf("clear leaked into sibling key")
	}
}

func TestChannelWideOperations(t *testing.T) {
	s := NewStore()
	s.Add(Key{Channel: "C001", ThreadRoot: "1.0"}, Fragment{Label: "A", Timestamp: "1.0"})
	s.Add(Key{Channel: "C001", ThreadRoot: "2.0"}, Fragment{Label: "B", Timestamp: "2.5"})
	s.Add(ChannelWideKey("C001"), Fragment{Label: "C", Timestamp: "3.0"})
	s.Add(Key{Channel: "C999", ThreadRoot: "9.0"}, Fragment{Label: "Z", Timestamp: "9.0"})

	if got := s.ListChannel("C001"); len(got) != 3 {
		t.Fatalf("expected 3 fragments across C001 keys, got %d", len(got))
	}

	s.ClearChannel("C001")
	if got := s.ListChannel("C001"); len(got) != 0 {
		t.Fatalf("channel clear left %d fragments", len(got))
	}
	if got := s.List(Key{Channel: "C999", ThreadRoot: "9.0"}); len(got) != 1 {
		t.Fatalf("channel clear crossed channel boundary")
	}
}

func TestChannelWideKeyIsDistinct(t *testing.T) {
	wide := ChannelWideKey("C001")
	thread := Key{Channel: "C001", ThreadRoot: "1.0"}
	if wide == thread {
		t.Fatalf("channel-wide key must differ from thread keys")
	}
	if wide.String() != "C001:*" {
		t.Fatalf("unexpected wide key string %q", wide.String())
	}
}

func TestStatusReportsNonEmptyKeys(t *testing.T) {
	s := NewStore()
	if got := s.Status(); len(got) != 0 {
		t.Fatalf("empty store should report no keys")
	}
	s.Add(Key{Channel: "C001", ThreadRoot: "1.0"}, Fragment{Label: "A", Timestamp: "1.0"})
	s.Add(Key{Channel: "C001", ThreadRoot: "1.0"}, Fragment{Label: "B", Timestamp: "1.5"})
	s.Add(Key{Channel: "C002", ThreadRoot: "2.0"}, Fragment{Label: "A", Timestamp: "2.0"})

	got := s.Status()
	if len(got) != 2 {
		t.Fatalf("expected 2 status entries, got %d", len(got))
	}
	if got[0].Key != "C001:1.0" || got[0].Count != 2 {
		t.Fatalf("unexpected first status entry %+v", got[0])
	}
}
