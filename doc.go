// Package neat4go is a Go implementation of NeuroEvolution of Augmenting
// Topologies (NEAT).
//
// NEAT evolves both the weights and the structure of small neural networks.
// Genomes grow by splitting connections and adding new ones; a shared gene
// cache hands out innovation numbers so structurally identical mutations in
// different genomes line up during crossover. Genomes are grouped into species
// by compatibility distance, and the distance threshold adapts so the number of
// species tracks a target.
//
// The algorithm lives in package neat, the feed-forward evaluator in neat/nn,
// snapshot persistence in neat/store and Prometheus export in neat/metrics.
//
// Basic usage:
//
//	config, err := neat.LoadConfig("path/to/config.ini")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	pop, err := neat.NewPopulation(config)
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	for i := 0; i < 100; i++ {
//		best, score, err := pop.RunGeneration(evalClient)
//		if err != nil {
//			log.Fatalf("Error running generation: %v", err)
//		}
//		if score > 3.9 {
//			fmt.Println("Solution found:", best)
//			break
//		}
//	}
package neat4go
