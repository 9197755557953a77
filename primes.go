// Copyright 2026 The Linear Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linear

// primes holds the capacities a table can take on. Each entry is a prime
// close to a power of two, so capacity roughly doubles per growth step while
// bucket indexes stay well distributed even for hash functions with poor
// low-bit entropy. The final entry is the largest prime that fits in an
// int32.
var primes = [...]int{
	7,
	17,
	31,
	61,
	127,
	251,
	509,
	1021,
	2039,
	4093,
	8191,
	16381,
	32749,
	65521,
	131071,
	262139,
	524287,
	1048573,
	2097143,
	4194301,
	8388593,
	16777213,
	33554393,
	67108859,
	134217689,
	268435399,
	536870909,
	1073741789,
	2147483647,
}

// nextPrime returns the capacity after primes[idx], and false if the
// schedule is exhausted.
func nextPrime(idx int) (int, bool) {
	if idx+1 >= len(primes) {
		return 0, false
	}
	return primes[idx+1], true
}

// primeIndexFor returns the index of the smallest capacity that can hold n
// entries without exceeding the maximum load factor. It panics if no
// capacity in the schedule is large enough.
func primeIndexFor(n int) int {
	for i, p := range primes {
		if n*maxLoadDen <= p*maxLoadNum {
			return i
		}
	}
	panic("linear: initial capacity exceeds the largest table size")
}
