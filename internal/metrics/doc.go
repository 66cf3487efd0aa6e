// Package metrics records pipeline activity as Prometheus metrics.
//
// A Recorder is attached to the pipeline driver as an Observer. Once the run
// is over the collected series can be written in the node-exporter textfile
// format so a local node_exporter picks them up.
package metrics
