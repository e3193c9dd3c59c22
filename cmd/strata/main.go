// Package main provides the Strata ML Framework CLI.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/strata-ml/strata/backend/cpu"
	"github.com/strata-ml/strata/data"
	"github.com/strata-ml/strata/graph"
	"github.com/strata-ml/strata/net"
	"github.com/strata-ml/strata/tensor"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Strata ML Framework %s\n", version)
			return
		case "demo":
			if err := runDemo(); err != nil {
				fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("Strata ML Framework - Layered Training for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Train a small regression net on synthetic data")
}

// runDemo fits y = x0 + 2*x1 with a fullc/relu/fullc stack.
func runDemo() error {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(data.DefaultRandMagic))

	const n, batch = 256, 32
	examples := tensor.MustNewRaw(tensor.Shape{n, 2}, tensor.Float32, tensor.CPU)
	labels := make([]float32, n)
	buf := examples.AsFloat32()
	for i := 0; i < n; i++ {
		x0, x1 := rng.Float32(), rng.Float32()
		buf[2*i], buf[2*i+1] = x0, x1
		labels[i] = x0 + 2*x1
	}

	iter, err := data.NewMemoryIterator(backend, examples, labels)
	if err != nil {
		return err
	}
	iter.SetParam("batch_size", fmt.Sprint(batch))
	iter.SetParam("shuffle", "1")
	if err := iter.Init(); err != nil {
		return err
	}

	hidden := graph.NewFullcLayer(backend)
	hidden.SetParam("num_hidden", "8")
	hidden.SetParam("init_sigma", "0.3")
	head := graph.NewFullcLayer(backend)
	head.SetParam("num_hidden", "1")
	head.SetParam("init_sigma", "0.3")

	model := net.New(backend, hidden, graph.NewReLULayer(backend), head)
	if err := model.InitModel(tensor.Shape{batch, 2}, tensor.Float32); err != nil {
		return err
	}
	model.InitParams(rng)
	if err := model.ConfigureSync("sgd"); err != nil {
		return err
	}
	model.SetParam("learning_rate", "0.1")

	for round := 0; round < 20; round++ {
		model.StartRound(round)
		var loss float64
		var batches int
		iter.BeforeFirst()
		for iter.Next() {
			b := iter.Value()
			model.TrainStep(b.Data, func(out *tensor.RawTensor) {
				pred := out.AsFloat32()
				for i := range pred {
					diff := pred[i] - b.Labels[i]
					loss += float64(diff) * float64(diff)
					pred[i] = 2 * diff / float32(len(pred))
				}
			})
			batches++
		}
		fmt.Printf("round %2d  mse %.5f\n", round, loss/float64(batches*batch))
	}
	return nil
}
