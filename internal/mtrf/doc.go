// Package mtrf drives the nooLite MTRF-64 USB radio adapter.
//
// The adapter speaks fixed 17-byte frames over a 9600 8N1 serial line.
// Requests start with 0xAB and end with 0xAC; responses start with 0xAD and
// end with 0xAE. Byte 15 is the low byte of the sum of the first 15 bytes.
//
// Adapter owns the port. It runs one read loop that resynchronises on the
// response start byte, decodes frames and publishes Reception records on
// Receptions(). Connection changes are published on Lifecycle().
// Transmit methods (On, Off, SetBrightness, ReadState, Switch) write one
// request each and are serialised by a mutex.
//
// MockAdapter has the same method set and only logs, for running the bridge
// without hardware.
package mtrf
