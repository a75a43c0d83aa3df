/*
Package l2tp implements the control protocol of an L2TPv3-style
pseudowire daemon which carries telecom traffic channels over raw IP
(IP protocol 115, no UDP encapsulation).

The package provides a Context which owns all live control connections
and their sessions.  A Context runs a single engine goroutine which
serialises all protocol state mutation: raw socket reads, timer expiry
and administrative commands are delivered to the engine as events, and
every effect of processing an event completes before the next event is
handled.

Control connections are established using the RFC3931-style three-way
handshake (SCCRQ, SCCRP, SCCCN), after which the vendor-specific
traffic-channel configuration exchange (TCRQ/TCRP, ALTCRQ/ALTCRP) is
run, and individual sessions are brought up using the incoming-call
exchange (ICRQ, ICRP, ICCN).  All control messages carry a keyed
message digest which is validated before any message is processed.

Applications integrate with the engine in two ways: an EventHandler
receives connection and session lifecycle events, and a TrafficRelay
receives established-session notifications along with inbound
data-plane frames for forwarding to local consumers.
*/
package l2tp
