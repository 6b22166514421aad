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

// Package linalg provides the dense complex Hermitian solve and inverse
// primitives used by the per-bin normal equations of the dereverberation
// estimators.
//
// gonum's factorizations are real-valued, so an n-by-n complex Hermitian
// system R x = b is solved through its equivalent 2n-by-2n real symmetric
// embedding
//
//	[ Re(R)  -Im(R) ] [ Re(x) ]   [ Re(b) ]
//	[ Im(R)   Re(R) ] [ Im(x) ] = [ Im(b) ]
//
// which is symmetric positive definite exactly when R is Hermitian positive
// definite.
package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite reports that a matrix could not be factorized
// because it is singular or not positive definite within the Cholesky
// tolerance.
var ErrNotPositiveDefinite = errors.New("linalg: matrix is singular or not positive definite")

// realEmbedding maps the n-by-n Hermitian matrix a (row-major) onto its
// 2n-by-2n real symmetric embedding. Only the upper triangle of a is read;
// the Hermitian property supplies the rest.
func realEmbedding(a []complex128, n int) *mat.SymDense {
	s := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			re := real(a[i*n+j])
			s.SetSym(i, j, re)
			s.SetSym(n+i, n+j, re)
		}
		for j := 0; j < n; j++ {
			// Upper-right block holds -Im(R); Im of a Hermitian matrix is
			// skew-symmetric, so the embedding stays symmetric.
			s.SetSym(i, n+j, -imag(a[i*n+j]))
		}
	}
	return s
}

// SolveHermitian solves R x = b for the n-by-n Hermitian positive definite
// matrix a (row-major) and the length-n right-hand side b. It returns
// ErrNotPositiveDefinite (wrapped) when the factorization fails.
func SolveHermitian(a []complex128, b []complex128, n int) ([]complex128, error) {
	if len(a) != n*n {
		return nil, fmt.Errorf("linalg: matrix has %d entries, want %d", len(a), n*n)
	}
	if len(b) != n {
		return nil, fmt.Errorf("linalg: right-hand side has length %d, want %d", len(b), n)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(realEmbedding(a, n)); !ok {
		return nil, ErrNotPositiveDefinite
	}

	rhs := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, real(b[i]))
		rhs.SetVec(n+i, imag(b[i]))
	}

	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}

	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = complex(sol.AtVec(i), sol.AtVec(n+i))
	}
	return x, nil
}

// InvertHermitian inverts the n-by-n Hermitian positive definite matrix a
// (row-major), returning the inverse in row-major order.
func InvertHermitian(a []complex128, n int) ([]complex128, error) {
	if len(a) != n*n {
		return nil, fmt.Errorf("linalg: matrix has %d entries, want %d", len(a), n*n)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(realEmbedding(a, n)); !ok {
		return nil, ErrNotPositiveDefinite
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}

	// The inverse of the embedding has the same block structure; the complex
	// inverse is read off as C + iD from [[C, -D], [D, C]].
	out := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = complex(inv.At(i, j), inv.At(n+i, j))
		}
	}
	return out, nil
}
