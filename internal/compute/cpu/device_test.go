package cpu

import (
	"context"
	"errors"
	"testing"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

func Test_NewBuffer_Allocates_Zeroed_Memory_With_Requested_Usage(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()

	buf, err := d.NewBuffer(64, compute.UsageStorage|compute.UsageCopySrc)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	if buf.Size() != 64 {
		t.Fatalf("Size() = %d, want 64", buf.Size())
	}
	if !buf.Usage().Has(compute.UsageStorage) || !buf.Usage().Has(compute.UsageCopySrc) {
		t.Fatalf("Usage() = %b, missing requested flags", buf.Usage())
	}
	if buf.Usage().Has(compute.UsageUniform) {
		t.Fatalf("Usage() = %b, has flag that was not requested", buf.Usage())
	}

	data, err := d.Read(context.Background(), buf, 0, 64)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("fresh buffer byte %d = %d, want 0", i, b)
		}
	}
}

func Test_NewBuffer_Rejects_NonPositive_Size(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()

	if _, err := d.NewBuffer(0, compute.UsageStorage); err == nil {
		t.Fatal("NewBuffer(0) succeeded, want error")
	}
	if _, err := d.NewBuffer(-8, compute.UsageStorage); err == nil {
		t.Fatal("NewBuffer(-8) succeeded, want error")
	}
}

func Test_Read_And_Write_Reject_Out_Of_Range_Access(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()

	buf, err := d.NewBuffer(16, compute.UsageStorage)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}

	ctx := context.Background()
	if _, err := d.Read(ctx, buf, 8, 16); !errors.Is(err, compute.ErrOutOfRange) {
		t.Fatalf("Read past end = %v, want ErrOutOfRange", err)
	}
	if _, err := d.Read(ctx, buf, -1, 4); !errors.Is(err, compute.ErrOutOfRange) {
		t.Fatalf("Read negative offset = %v, want ErrOutOfRange", err)
	}
	if err := d.Write(buf, 12, make([]byte, 8)); !errors.Is(err, compute.ErrOutOfRange) {
		t.Fatalf("Write past end = %v, want ErrOutOfRange", err)
	}
}

func Test_Write_Then_Read_Round_Trips(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()

	buf, err := d.NewBuffer(8, compute.UsageStorage)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := d.Write(buf, 0, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := d.Read(context.Background(), buf, 0, 8)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func Test_Encoder_CopyBuffer_Copies_Sub_Ranges_Between_Buffers(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()
	ctx := context.Background()

	src, err := d.NewBuffer(16, compute.UsageStorage|compute.UsageCopySrc)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	dst, err := d.NewBuffer(16, compute.UsageStorage|compute.UsageCopyDst)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}

	if err := d.Write(src, 0, []byte{10, 11, 12, 13, 14, 15, 16, 17}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	enc := d.NewEncoder()
	enc.CopyBuffer(src, 4, dst, 8, 4)
	if err := d.Submit(ctx, enc); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got, err := d.Read(ctx, dst, 8, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, want := range []byte{14, 15, 16, 17} {
		if got[i] != want {
			t.Fatalf("copied byte %d = %d, want %d", i, got[i], want)
		}
	}
}

func Test_NewPipeline_Rejects_Unknown_Entry_Point(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()

	if _, err := d.NewPipeline("entry_point: nope", "nope"); !errors.Is(err, compute.ErrUnknownKernel) {
		t.Fatalf("NewPipeline = %v, want ErrUnknownKernel", err)
	}
	if _, err := d.NewPipeline(ShaderBulkGet, "bulk_get"); err != nil {
		t.Fatalf("NewPipeline(bulk_get) failed: %v", err)
	}
}

func Test_Release_Frees_A_Buffer_And_Tolerates_Double_Release(t *testing.T) {
	t.Parallel()

	d := New()
	defer d.Close()

	buf, err := d.NewBuffer(32, compute.UsageStorage)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	if err := d.Release(buf); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := d.Release(buf); err != nil {
		t.Fatalf("double Release = %v, want nil", err)
	}
}

func Test_Device_Rejects_Work_After_Close(t *testing.T) {
	t.Parallel()

	d := New()
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close = %v, want nil", err)
	}

	if _, err := d.NewBuffer(8, compute.UsageStorage); err == nil {
		t.Fatal("NewBuffer after Close succeeded, want error")
	}
	if err := d.Submit(context.Background(), d.NewEncoder()); err == nil {
		t.Fatal("Submit after Close succeeded, want error")
	}
}
