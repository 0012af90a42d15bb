// Command example benchmarks HLL.AddRaw and a ToBytes/FromBytes/Union
// round trip against forty million random 64 bit values.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"time"

	hll "github.com/AdRoll/go-hll"
)

func main() {
	const count = 40000000

	buf := bytes.NewBuffer(nil)
	for i := 0; i < count; i++ {
		binary.Write(buf, binary.LittleEndian, uint64(rand.Int63()))
	}
	b := buf.Bytes()

	t1 := time.Now().UnixNano()
	h, err := hll.New(14, 5)
	if err != nil {
		panic(fmt.Sprintf("hll.New: %s", err))
	}

	offset := 0
	for i := 0; i < count; i++ {
		h.AddRaw(binary.LittleEndian.Uint64(b[offset:]))
		offset += 8
	}

	num := h.Cardinality()
	t2 := time.Now().UnixNano()
	fmt.Printf("time:%d ns, accuracy:%f\n", t2-t1, float64(num)/float64(count))

	data := h.ToBytes()
	fmt.Printf("bytes:%d\n", len(data))

	filename := "/tmp/hyperloglog.dat"
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		fmt.Printf("os.WriteFile: %s\n", err)
		return
	}

	data, err = os.ReadFile(filename)
	if err != nil {
		fmt.Printf("os.ReadFile: %s\n", err)
		return
	}

	t3 := time.Now().UnixNano()
	h2, err := hll.FromBytes(data)
	if err != nil {
		fmt.Printf("hll.FromBytes: %s\n", err)
		return
	}

	num = h2.Cardinality()
	t4 := time.Now().UnixNano()

	if err := h.Union(h2); err != nil {
		fmt.Printf("h.Union: %s\n", err)
		return
	}

	fmt.Printf("time:%d ns, accuracy:%f, after union accuracy:%f\n",
		t4-t3, float64(num)/float64(count), float64(h.Cardinality())/float64(count))
}
