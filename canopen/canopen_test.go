package canopen

import (
	"testing"

	"github.com/lufla/softcan"
)

func TestCOBIDCompose(t *testing.T) {
	if id := FCTPDO1.COBID(1); id != 0x181 {
		t.Fatalf("tpdo1 id: 0x%X", id)
	}
	if id := FCHeartbeat.COBID(0x7F); id != 0x77F {
		t.Fatalf("heartbeat id: 0x%X", id)
	}
	if id := FCNMT.COBID(12); id != 0x000 {
		t.Fatalf("nmt id must ignore node: 0x%X", id)
	}
	if id := FCSync.COBID(0); id != 0x080 {
		t.Fatalf("sync id: 0x%X", id)
	}
}

func TestSplitCOBID(t *testing.T) {
	if fc, node, err := SplitCOBID(0x77F); err != nil || fc != FCHeartbeat || node != 0x7F {
		t.Fatalf("split heartbeat: fc=%v node=%v err=%v", fc, node, err)
	}
	if fc, _, err := SplitCOBID(0x080); err != nil || fc != FCSync {
		t.Fatalf("0x080 resolves to sync: fc=%v err=%v", fc, err)
	}
	if fc, node, err := SplitCOBID(0x085); err != nil || fc != FCEmergency || node != 5 {
		t.Fatalf("split emcy: fc=%v node=%v err=%v", fc, node, err)
	}
	if _, _, err := SplitCOBID(0x800); err == nil {
		t.Fatalf("12-bit id must be rejected")
	}
	if _, _, err := SplitCOBID(0x120); err == nil {
		t.Fatalf("id outside base ranges must be rejected")
	}
}

func TestNodeIDValidate(t *testing.T) {
	if err := NodeID(0).Validate(); err == nil {
		t.Fatalf("node 0 must be invalid")
	}
	if err := NodeID(128).Validate(); err == nil {
		t.Fatalf("node 128 must be invalid")
	}
	if err := NodeID(127).Validate(); err != nil {
		t.Fatalf("node 127: %v", err)
	}
}

func TestNMTBuildParse(t *testing.T) {
	f := BuildNMT(NMTStart, 0)
	cmd, node, err := ParseNMT(f)
	if err != nil || cmd != NMTStart || node != 0 {
		t.Fatalf("nmt parse mismatch: cmd=%v node=%d err=%v", cmd, node, err)
	}
	if _, _, err := ParseNMT(softcan.MustFrame(0x123, nil)); err == nil {
		t.Fatalf("non-NMT id must be rejected")
	}
	short := f
	short.DLC = 1
	if _, _, err := ParseNMT(short); err == nil {
		t.Fatalf("short NMT frame must be rejected")
	}
}

func TestHeartbeatBuildParse(t *testing.T) {
	f, err := BuildHeartbeat(10, StateOperational)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := ParseHeartbeat(f)
	if err != nil {
		t.Fatal(err)
	}
	if hb.Node != 10 || hb.State != StateOperational {
		t.Fatalf("heartbeat mismatch: %+v", hb)
	}

	if _, err := BuildHeartbeat(0, StateBootup); err == nil {
		t.Fatalf("broadcast heartbeat must be rejected")
	}
	if _, err := ParseHeartbeat(softcan.MustFrame(0x181, []byte{1})); err == nil {
		t.Fatalf("pdo frame must not parse as heartbeat")
	}
	empty := f
	empty.DLC = 0
	if _, err := ParseHeartbeat(empty); err == nil {
		t.Fatalf("empty heartbeat must be rejected")
	}
}
