package track

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputrack"
)

func newTestBuffer(t *testing.T, reg *gputrack.Registry, size uint64) *gputrack.Resource {
	t.Helper()
	id, err := reg.CreateBuffer(gputrack.BufferDescriptor{Label: "test-buffer", Size: size})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	res, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return res
}

func newTestImage(t *testing.T, reg *gputrack.Registry, mips, layers uint32) *gputrack.Resource {
	t.Helper()
	id, err := reg.CreateImage(gputrack.ImageDescriptor{
		Label:       "test-image",
		Format:      gputypes.TextureFormatRGBA8Unorm,
		Size:        gputypes.Extent3D{Width: 256, Height: 256, DepthOrArrayLayers: 1},
		MipLevels:   mips,
		ArrayLayers: layers,
	})
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	res, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return res
}

func bufAccess(off, size uint64, mode gputrack.AccessMode, stages gputrack.StageMask) gputrack.AccessDescriptor {
	return gputrack.AccessDescriptor{
		Buffer: gputrack.BufferRange{Offset: off, Size: size},
		Stages: stages,
		Mode:   mode,
	}
}

func TestRecordFirstAccessIsFree(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	req, err := table.Record(buf, bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !req.None() {
		t.Errorf("first access = %v, want none", req)
	}
}

func TestRecordWriteThenRead(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	if req, _ := table.Record(buf, bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageTransfer), NoToken); !req.None() {
		t.Fatalf("write = %v, want none", req)
	}
	req, err := table.Record(buf, bufAccess(0, 64, gputrack.AccessRead, gputrack.StageComputeShader), NoToken)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if req.Kind != SyncMemoryBarrier {
		t.Errorf("read after write Kind = %v, want MemoryBarrier", req.Kind)
	}
	if req.SrcStages != gputrack.StageTransfer {
		t.Errorf("SrcStages = %v, want Transfer", req.SrcStages)
	}
	if req.DstStages&gputrack.StageComputeShader == 0 {
		t.Errorf("DstStages = %v, must include ComputeShader", req.DstStages)
	}
	if req.Buffer != (gputrack.BufferRange{Offset: 0, Size: 64}) {
		t.Errorf("conflict range = %v, want [0, 64)", req.Buffer)
	}
}

func TestRecordReadsNeverConflict(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	accesses := []gputrack.AccessDescriptor{
		bufAccess(0, 128, gputrack.AccessRead, gputrack.StageVertexShader),
		bufAccess(0, 128, gputrack.AccessRead, gputrack.StageFragmentShader),
		bufAccess(32, 64, gputrack.AccessRead, gputrack.StageComputeShader),
	}
	for i, a := range accesses {
		req, err := table.Record(buf, a, NoToken)
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
		if !req.None() {
			t.Errorf("read %d = %v, want none", i, req)
		}
	}
}

func TestRecordDisjointRangesNeverConflict(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	// Two disjoint sub-ranges written in the same session.
	if req, _ := table.Record(buf, bufAccess(0, 32, gputrack.AccessWrite, gputrack.StageTransfer), NoToken); !req.None() {
		t.Errorf("write [0,32) = %v, want none", req)
	}
	if req, _ := table.Record(buf, bufAccess(32, 32, gputrack.AccessWrite, gputrack.StageTransfer), NoToken); !req.None() {
		t.Errorf("write [32,64) = %v, want none", req)
	}
	// A read of the second half conflicts only with its writer.
	req, _ := table.Record(buf, bufAccess(32, 32, gputrack.AccessRead, gputrack.StageComputeShader), NoToken)
	if req.Kind != SyncMemoryBarrier {
		t.Errorf("read [32,64) Kind = %v, want MemoryBarrier", req.Kind)
	}
	if req.Buffer != (gputrack.BufferRange{Offset: 32, Size: 32}) {
		t.Errorf("conflict range = %v, want [32, 64)", req.Buffer)
	}
}

func TestRecordWriteAfterRead(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	table.Record(buf, bufAccess(0, 128, gputrack.AccessRead, gputrack.StageVertexShader), NoToken)
	table.Record(buf, bufAccess(0, 128, gputrack.AccessRead, gputrack.StageFragmentShader), NoToken)

	req, _ := table.Record(buf, bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	if req.Kind != SyncExecutionBarrier {
		t.Errorf("write after reads Kind = %v, want ExecutionBarrier (nothing to flush)", req.Kind)
	}
	// Stage masks of all conflicting readers aggregate into one barrier.
	want := gputrack.StageVertexShader | gputrack.StageFragmentShader
	if req.SrcStages != want {
		t.Errorf("SrcStages = %v, want %v", req.SrcStages, want)
	}
}

func TestRecordWriteAfterWrite(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	table.Record(buf, bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	req, _ := table.Record(buf, bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageComputeShader), NoToken)
	if req.Kind != SyncMemoryBarrier {
		t.Errorf("write after write Kind = %v, want MemoryBarrier", req.Kind)
	}
}

func TestRecordReadWriteMode(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	table.Record(buf, bufAccess(0, 128, gputrack.AccessReadWrite, gputrack.StageComputeShader), NoToken)
	// A later read conflicts with the read-write as with any write.
	req, _ := table.Record(buf, bufAccess(0, 16, gputrack.AccessRead, gputrack.StageVertexShader), NoToken)
	if req.Kind != SyncMemoryBarrier {
		t.Errorf("read after read-write Kind = %v, want MemoryBarrier", req.Kind)
	}
}

func TestRecordCrossQueue(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	a := bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageTransfer)
	a.Queue = 0
	table.Record(buf, a, NoToken)

	b := bufAccess(0, 64, gputrack.AccessRead, gputrack.StageComputeShader)
	b.Queue = 1
	req, _ := table.Record(buf, b, NoToken)
	if req.Kind != SyncQueueTransfer {
		t.Fatalf("cross-queue Kind = %v, want QueueTransfer", req.Kind)
	}
	if req.SrcQueue != 0 || req.DstQueue != 1 {
		t.Errorf("queues = %d -> %d, want 0 -> 1", req.SrcQueue, req.DstQueue)
	}
}

func TestRecordImageLayoutTransition(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	img := newTestImage(t, reg, 1, 1)

	write := gputrack.AccessDescriptor{
		Image:  gputrack.WholeImage(),
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessWrite,
		Layout: gputrack.LayoutTransferDst,
	}
	req, err := table.Record(img, write, NoToken)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Fresh images sit in LayoutUndefined, so even the first touch needs
	// a transition.
	if !req.HasTransition || req.OldLayout != gputrack.LayoutUndefined || req.NewLayout != gputrack.LayoutTransferDst {
		t.Fatalf("first touch = %v, want Undefined -> TransferDst transition", req)
	}
	if img.Layout() != gputrack.LayoutTransferDst {
		t.Fatalf("resource layout = %v, want TransferDst", img.Layout())
	}

	read := gputrack.AccessDescriptor{
		Image:  gputrack.WholeImage(),
		Stages: gputrack.StageFragmentShader,
		Mode:   gputrack.AccessRead,
		Layout: gputrack.LayoutShaderReadOnly,
	}
	req, err = table.Record(img, read, NoToken)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if req.Kind != SyncMemoryBarrier {
		t.Errorf("Kind = %v, want MemoryBarrier", req.Kind)
	}
	if !req.HasTransition {
		t.Fatal("missing layout transition")
	}
	if req.OldLayout != gputrack.LayoutTransferDst || req.NewLayout != gputrack.LayoutShaderReadOnly {
		t.Errorf("transition = %v -> %v, want TransferDst -> ShaderReadOnly", req.OldLayout, req.NewLayout)
	}
	if img.Layout() != gputrack.LayoutShaderReadOnly {
		t.Errorf("resource layout = %v, want ShaderReadOnly", img.Layout())
	}
}

func TestRecordImageSameLayoutNoTransition(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	img := newTestImage(t, reg, 1, 1)

	a := gputrack.AccessDescriptor{
		Image:  gputrack.WholeImage(),
		Stages: gputrack.StageFragmentShader,
		Mode:   gputrack.AccessRead,
		Layout: gputrack.LayoutShaderReadOnly,
	}
	table.Record(img, a, NoToken)
	req, _ := table.Record(img, a, NoToken)
	if !req.None() {
		t.Errorf("repeat same-layout read = %v, want none", req)
	}
}

func TestRecordDisjointImageSubresources(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	img := newTestImage(t, reg, 4, 2)

	mip := func(level uint32, mode gputrack.AccessMode) gputrack.AccessDescriptor {
		return gputrack.AccessDescriptor{
			Image: gputrack.ImageRange{
				BaseMip: level, MipCount: 1,
				BaseLayer: 0, LayerCount: 2,
				Aspect: gputypes.TextureAspectAll,
			},
			Stages: gputrack.StageTransfer,
			Mode:   mode,
			Layout: gputrack.LayoutTransferDst,
		}
	}
	// Transition the whole image first so later touches carry no
	// transition of their own.
	table.Record(img, gputrack.AccessDescriptor{
		Image:  gputrack.WholeImage(),
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessWrite,
		Layout: gputrack.LayoutTransferDst,
	}, NoToken)

	// Mip 1 writes do not conflict with mip 2 writes... but both conflict
	// with the whole-image write above, so resolve those barriers first.
	table.Record(img, mip(1, gputrack.AccessWrite), NoToken)
	req, _ := table.Record(img, mip(2, gputrack.AccessWrite), NoToken)
	// The mip-2 write overlaps only the initial whole-image write, not
	// the mip-1 write.
	if req.Kind != SyncMemoryBarrier {
		t.Errorf("Kind = %v, want MemoryBarrier against whole-image write", req.Kind)
	}
	if req.Image.BaseMip != 2 || req.Image.MipCount != 1 {
		t.Errorf("conflict range = %v, want mip 2 only", req.Image)
	}
}

func TestRecordValidation(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 64)
	img := newTestImage(t, reg, 1, 1)

	tests := []struct {
		name    string
		res     *gputrack.Resource
		access  gputrack.AccessDescriptor
		wantErr error
	}{
		{
			"range past end",
			buf,
			bufAccess(32, 64, gputrack.AccessRead, gputrack.StageTransfer),
			gputrack.ErrInvalidRange,
		},
		{
			"offset past end",
			buf,
			bufAccess(64, 1, gputrack.AccessRead, gputrack.StageTransfer),
			gputrack.ErrInvalidRange,
		},
		{
			"image range on buffer",
			buf,
			gputrack.AccessDescriptor{Image: gputrack.WholeImage(), Mode: gputrack.AccessRead},
			gputrack.ErrKindMismatch,
		},
		{
			"buffer range on image",
			img,
			bufAccess(0, 16, gputrack.AccessRead, gputrack.StageTransfer),
			gputrack.ErrKindMismatch,
		},
		{
			"mip out of range",
			img,
			gputrack.AccessDescriptor{
				Image: gputrack.ImageRange{BaseMip: 3, MipCount: 1, LayerCount: 1},
				Mode:  gputrack.AccessRead,
			},
			gputrack.ErrInvalidRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Record(tt.res, tt.access, NoToken)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Record err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordDeterminism(t *testing.T) {
	// Replaying the same ordered touch sequence through a fresh table
	// yields the same sequence of requirement kinds.
	sequence := []gputrack.AccessDescriptor{
		bufAccess(0, 64, gputrack.AccessWrite, gputrack.StageTransfer),
		bufAccess(0, 64, gputrack.AccessRead, gputrack.StageComputeShader),
		bufAccess(64, 64, gputrack.AccessWrite, gputrack.StageTransfer),
		bufAccess(0, 128, gputrack.AccessRead, gputrack.StageVertexShader),
		bufAccess(0, 128, gputrack.AccessWrite, gputrack.StageComputeShader),
	}
	run := func() []SyncKind {
		reg := gputrack.NewRegistry()
		table := NewTable()
		buf := newTestBuffer(t, reg, 128)
		kinds := make([]SyncKind, 0, len(sequence))
		for _, a := range sequence {
			req, err := table.Record(buf, a, NoToken)
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			kinds = append(kinds, req.Kind)
		}
		return kinds
	}
	first := run()
	for i := 0; i < 3; i++ {
		got := run()
		for j := range first {
			if got[j] != first[j] {
				t.Fatalf("replay %d diverged at %d: %v vs %v", i, j, got[j], first[j])
			}
		}
	}
}

func TestRetirePrunesReaders(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	tok := table.NewToken()
	table.Record(buf, bufAccess(0, 128, gputrack.AccessRead, gputrack.StageVertexShader), tok)
	id := table.Advance()
	table.Bind(tok, id)
	table.Retire(id)

	// With the reader retired, a write conflicts with nothing.
	req, _ := table.Record(buf, bufAccess(0, 128, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	if !req.None() {
		t.Errorf("write after retire = %v, want none", req)
	}
}

func TestRetireKeepsUnboundReaders(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	tok := table.NewToken()
	id := table.Advance()
	// The reader's session was never submitted, so no binding ties it to
	// the retiring id.
	table.Record(buf, bufAccess(0, 128, gputrack.AccessRead, gputrack.StageVertexShader), tok)
	table.Retire(id)

	req, _ := table.Record(buf, bufAccess(0, 128, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	if req.Kind != SyncExecutionBarrier {
		t.Errorf("write against live reader = %v, want ExecutionBarrier", req.Kind)
	}
}

func TestRetireKeepsOtherSessionsReaders(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	// Two sessions read the same range back to back; both are submitted,
	// only the first completes.
	tokA, tokB := table.NewToken(), table.NewToken()
	table.Record(buf, bufAccess(0, 128, gputrack.AccessRead, gputrack.StageVertexShader), tokA)
	table.Record(buf, bufAccess(0, 128, gputrack.AccessRead, gputrack.StageComputeShader), tokB)

	idA := table.Advance()
	table.Bind(tokA, idA)
	idB := table.Advance()
	table.Bind(tokB, idB)
	table.Retire(idA)

	// The second session's read is still in flight; a write must still
	// order against it.
	req, _ := table.Record(buf, bufAccess(0, 128, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	if req.Kind != SyncExecutionBarrier {
		t.Fatalf("write with one session retired = %v, want ExecutionBarrier", req.Kind)
	}
	if req.SrcStages != gputrack.StageComputeShader {
		t.Errorf("SrcStages = %v, want ComputeShader (the pending reader only)", req.SrcStages)
	}
}

func TestForget(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	buf := newTestBuffer(t, reg, 128)

	table.Record(buf, bufAccess(0, 128, gputrack.AccessWrite, gputrack.StageTransfer), NoToken)
	if table.Len() != 1 {
		t.Fatalf("Len = %d, want 1", table.Len())
	}
	table.Forget(buf.ID())
	if table.Len() != 0 {
		t.Fatalf("Len after Forget = %d, want 0", table.Len())
	}
}

func TestTableConcurrentDisjointResources(t *testing.T) {
	reg := gputrack.NewRegistry()
	table := NewTable()

	const workers = 8
	const touches = 200
	resources := make([]*gputrack.Resource, workers)
	for i := range resources {
		resources[i] = newTestBuffer(t, reg, 1024)
	}

	var wg sync.WaitGroup
	errc := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(res *gputrack.Resource) {
			defer wg.Done()
			for i := 0; i < touches; i++ {
				mode := gputrack.AccessRead
				if i%4 == 0 {
					mode = gputrack.AccessWrite
				}
				if _, err := table.Record(res, bufAccess(uint64(i%4)*256, 256, mode, gputrack.StageComputeShader), NoToken); err != nil {
					errc <- fmt.Errorf("worker record: %w", err)
					return
				}
			}
		}(resources[w])
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Error(err)
	}
	if table.Len() != workers {
		t.Errorf("Len = %d, want %d", table.Len(), workers)
	}
}

func BenchmarkRecordReadHot(b *testing.B) {
	reg := gputrack.NewRegistry()
	table := NewTable()
	id, _ := reg.CreateBuffer(gputrack.BufferDescriptor{Label: "bench", Size: 1 << 20})
	buf, _ := reg.Get(id)
	access := bufAccess(0, 1<<20, gputrack.AccessRead, gputrack.StageComputeShader)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := table.Record(buf, access, NoToken); err != nil {
			b.Fatal(err)
		}
	}
}
