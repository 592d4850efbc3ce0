// Copyright 2024 The Loom Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package actor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	actorCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "loom",
			Subsystem: "actor",
			Name:      "number_of_actors",
			Help:      "The number of live actors in a system.",
		}, []string{"name"})
	spawnedActors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "actor",
			Name:      "spawned_actors_total",
			Help:      "Total number of spawned actors.",
		}, []string{"name"})
)

// InitMetrics registers all metrics in this file.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(actorCount)
	registry.MustRegister(spawnedActors)
}
