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

package wpe

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// forEachBin runs fn(bin) for every bin in [0, bins) on a bounded worker
// pool. Bins are fully independent within one iteration, so no
// synchronization is needed beyond the final error gather. When any bin
// fails, the error of the lowest failing bin is returned and the whole
// call is considered failed.
func forEachBin(bins int, fn func(bin int) error) error {
	workers := runtime.GOMAXPROCS(0)
	if workers > bins {
		workers = bins
	}
	if workers <= 1 {
		for bin := 0; bin < bins; bin++ {
			if err := fn(bin); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		next     atomic.Int64
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstBin = bins
		firstErr error
	)
	next.Store(-1)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				bin := int(next.Add(1))
				if bin >= bins {
					return
				}
				if err := fn(bin); err != nil {
					mu.Lock()
					if bin < firstBin {
						firstBin = bin
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
