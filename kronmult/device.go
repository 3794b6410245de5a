//go:build occa
// +build occa

package kronmult

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/notargets/gocca"

	"github.com/statmech/kronwave/utils"
)

// DeviceKronmult mirrors the precomputed-iA local engine on an OCCA device:
// the pattern, offset lists and coefficients are uploaded once, each apply
// moves the vectors and launches the batched kernel. One device block per
// row block, tensor entries across the inner lanes, so no atomics are
// needed on the output.
type DeviceKronmult[P utils.Scalar] struct {
	host   *LocalKronmult[P]
	device *gocca.OCCADevice
	kernel *gocca.OCCAKernel

	dPntr, dIndx, dIA *gocca.OCCAMemory
	dVA, dX, dY       *gocca.OCCAMemory
}

// NewDevice creates an OCCA device from a JSON property string, e.g.
// {"mode": "CUDA", "device_id": 0} or {"mode": "Serial"}.
func NewDevice(props string) (*gocca.OCCADevice, error) {
	return gocca.NewDevice(props)
}

func NewDeviceKronmult[P utils.Scalar](device *gocca.OCCADevice,
	host *LocalKronmult[P]) (kmat *DeviceKronmult[P], err error) {
	kmat = &DeviceKronmult[P]{host: host, device: device}
	var (
		scalarSize = int64(8)
	)
	if _, ok := any(P(0)).(float32); ok {
		scalarSize = 4
	}
	kmat.dPntr = device.Malloc(int64(len(host.pntr))*4, nil, nil)
	kmat.dIndx = device.Malloc(int64(len(host.indx))*4, nil, nil)
	kmat.dIA = device.Malloc(int64(len(host.iA))*4, nil, nil)
	kmat.dVA = device.Malloc(int64(len(host.vA))*scalarSize, nil, nil)
	kmat.dX = device.Malloc(int64(host.InputSize())*scalarSize, nil, nil)
	kmat.dY = device.Malloc(int64(host.OutputSize())*scalarSize, nil, nil)

	copyInts := func(mem *gocca.OCCAMemory, data []int) {
		conv := make([]int32, len(data))
		for i, v := range data {
			conv[i] = int32(v)
		}
		if len(conv) > 0 {
			mem.CopyFrom(unsafe.Pointer(&conv[0]), int64(len(conv))*4)
		}
	}
	copyInts(kmat.dPntr, host.pntr)
	copyInts(kmat.dIndx, host.indx)
	copyInts(kmat.dIA, host.iA)
	if len(host.vA) > 0 {
		kmat.dVA.CopyFrom(unsafe.Pointer(&host.vA[0]), int64(len(host.vA))*scalarSize)
	}

	source := kmat.kernelSource(scalarSize == 8)
	if kmat.kernel, err = device.BuildKernelFromString(source, "kronmultLocal", nil); err != nil {
		kmat.Free()
		return nil, fmt.Errorf("kronmult kernel build failed: %w", err)
	}
	return
}

func (kmat *DeviceKronmult[P]) kernelSource(double bool) string {
	var (
		real = "float"
		bs   = kmat.host.BlockSize()
		rows = bs / kmat.host.N
	)
	if double {
		real = "double"
	}
	src := `
@kernel void kronmultLocal(const int numRows,
                           const int numTerms,
                           @restrict const int *pntr,
                           @restrict const int *indx,
                           @restrict const int *iA,
                           @restrict const REAL *vA,
                           const REAL alpha,
                           @restrict const REAL *x,
                           const REAL beta,
                           @restrict REAL *y) {
  for (int r = 0; r < numRows; ++r; @outer) {
    @shared REAL X[TSIZE];
    @shared REAL W[TSIZE];
    @shared REAL acc[TSIZE];
    for (int i = 0; i < TSIZE; ++i; @inner) {
      acc[i] = (beta == (REAL) 0.) ? (REAL) 0. : beta * y[r * TSIZE + i];
    }
    for (int j = pntr[r]; j < pntr[r + 1]; ++j) {
      const int c = indx[j];
      for (int t = 0; t < numTerms; ++t) {
        for (int i = 0; i < TSIZE; ++i; @inner) {
          X[i] = x[c * TSIZE + i];
        }
        for (int s = 0; s < DIMS; ++s) {
          const int off = iA[(j * numTerms + t) * DIMS + (DIMS - 1 - s)];
          for (int i = 0; i < TSIZE; ++i; @inner) {
            REAL sum = 0;
            for (int b = 0; b < N; ++b) {
              sum += vA[off + (i / ROWS) * N + b] * X[(i % ROWS) * N + b];
            }
            W[i] = sum;
          }
          for (int i = 0; i < TSIZE; ++i; @inner) {
            X[i] = W[i];
          }
        }
        for (int i = 0; i < TSIZE; ++i; @inner) {
          acc[i] += alpha * X[i];
        }
      }
    }
    for (int i = 0; i < TSIZE; ++i; @inner) {
      y[r * TSIZE + i] = acc[i];
    }
  }
}
`
	src = strings.ReplaceAll(src, "REAL", real)
	src = strings.ReplaceAll(src, "TSIZE", fmt.Sprintf("%d", bs))
	src = strings.ReplaceAll(src, "ROWS", fmt.Sprintf("%d", rows))
	src = strings.ReplaceAll(src, "DIMS", fmt.Sprintf("%d", kmat.host.Dims))
	src = strings.ReplaceAll(src, "N", fmt.Sprintf("%d", kmat.host.N))
	return src
}

// Apply runs y = beta*y + alpha*A*x on the device, moving both vectors
// across. Semantics match the host engine.
func (kmat *DeviceKronmult[P]) Apply(alpha P, x []P, beta P, y []P) error {
	var (
		host       = kmat.host
		scalarSize = int64(unsafe.Sizeof(x[0]))
	)
	if len(x) < host.InputSize() || len(y) < host.OutputSize() {
		return fmt.Errorf("vector sizes %d, %d do not match operator shape %d x %d",
			len(x), len(y), host.OutputSize(), host.InputSize())
	}
	kmat.dX.CopyFrom(unsafe.Pointer(&x[0]), int64(host.InputSize())*scalarSize)
	kmat.dY.CopyFrom(unsafe.Pointer(&y[0]), int64(host.OutputSize())*scalarSize)
	if err := kmat.kernel.RunWithArgs(host.NumRows, host.NumTerms,
		kmat.dPntr, kmat.dIndx, kmat.dIA, kmat.dVA,
		alpha, kmat.dX, beta, kmat.dY); err != nil {
		return err
	}
	kmat.dY.CopyTo(unsafe.Pointer(&y[0]), int64(host.OutputSize())*scalarSize)
	return nil
}

// Free releases every device allocation; the engine is unusable afterwards.
func (kmat *DeviceKronmult[P]) Free() {
	for _, mem := range []*gocca.OCCAMemory{kmat.dPntr, kmat.dIndx, kmat.dIA,
		kmat.dVA, kmat.dX, kmat.dY} {
		if mem != nil {
			mem.Free()
		}
	}
	if kmat.kernel != nil {
		kmat.kernel.Free()
	}
}
