// Package eventlog reads test logs from files and Kafka topics.
//
// A test log is a sequence of JSON records, one per line of a file or one
// per message of a topic partition. Each source assigns line ordinals
// from position so that findings point back at the record that caused
// them: the physical line number for files, offset+1 for Kafka.
package eventlog
