// Copyright 2026 Michael Kuhlmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linalg

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
)

func mulVec(a []complex128, x []complex128, n int) []complex128 {
	y := make([]complex128, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			y[i] += a[i*n+j] * x[j]
		}
	}
	return y
}

func TestSolveHermitian(t *testing.T) {
	t.Run("identity system", func(t *testing.T) {
		a := []complex128{1, 0, 0, 1}
		b := []complex128{complex(2, 1), complex(-3, 0.5)}

		x, err := SolveHermitian(a, b, 2)
		require.NoError(t, err)
		require.Len(t, x, 2)
		for i := range b {
			require.InDelta(t, real(b[i]), real(x[i]), 1e-12)
			require.InDelta(t, imag(b[i]), imag(x[i]), 1e-12)
		}
	})

	t.Run("complex hermitian system", func(t *testing.T) {
		// Hermitian positive definite 2x2 with complex off-diagonal.
		a := []complex128{
			complex(4, 0), complex(1, 2),
			complex(1, -2), complex(6, 0),
		}
		want := []complex128{complex(0.5, -1), complex(2, 0.25)}
		b := mulVec(a, want, 2)

		x, err := SolveHermitian(a, b, 2)
		require.NoError(t, err)
		for i := range want {
			require.InDelta(t, real(want[i]), real(x[i]), 1e-10)
			require.InDelta(t, imag(want[i]), imag(x[i]), 1e-10)
		}
	})

	t.Run("singular system fails", func(t *testing.T) {
		// Rank-1 matrix, not positive definite.
		a := []complex128{1, 1, 1, 1}
		b := []complex128{1, 1}

		_, err := SolveHermitian(a, b, 2)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrNotPositiveDefinite)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := SolveHermitian([]complex128{1, 0, 0}, []complex128{1, 1}, 2)
		require.Error(t, err)
	})
}

func TestInvertHermitian(t *testing.T) {
	t.Run("inverse times matrix is identity", func(t *testing.T) {
		a := []complex128{
			complex(5, 0), complex(2, 1), complex(0, -1),
			complex(2, -1), complex(4, 0), complex(1, 0.5),
			complex(0, 1), complex(1, -0.5), complex(3, 0),
		}

		inv, err := InvertHermitian(a, 3)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				var p complex128
				for k := 0; k < 3; k++ {
					p += inv[i*3+k] * a[k*3+j]
				}
				want := 0.0
				if i == j {
					want = 1.0
				}
				require.InDelta(t, want, real(p), 1e-9)
				require.InDelta(t, 0.0, imag(p), 1e-9)
			}
		}
	})

	t.Run("inverse is hermitian", func(t *testing.T) {
		a := []complex128{
			complex(2, 0), complex(0.5, 0.5),
			complex(0.5, -0.5), complex(3, 0),
		}

		inv, err := InvertHermitian(a, 2)
		require.NoError(t, err)
		require.InDelta(t, 0, cmplx.Abs(inv[0*2+1]-cmplx.Conj(inv[1*2+0])), 1e-10)
	})

	t.Run("singular matrix fails", func(t *testing.T) {
		a := []complex128{0, 0, 0, 0}
		_, err := InvertHermitian(a, 2)
		require.ErrorIs(t, err, ErrNotPositiveDefinite)
	})
}
