// Package fether has the small amount of Ethernet framing knowledge
// the link needs: header layout, EtherType values,
// and a set type used to classify inbound frames.
package fether
