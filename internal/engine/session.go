package engine

import "NetFlowScope/internal/model"

// initialState returns the state a freshly created session starts in.
// Only TCP has a protocol-aware machine; UDP and ICMP use the simplified
// two-state model and close via idle timeout alone.
func initialState(protocol uint8) model.SessionState {
	if protocol == model.ProtoTCP {
		return model.StateNew
	}
	return model.StateActive
}

// advanceTCP applies one TCP segment's flags to the session state machine:
//
//	NEW -> ESTABLISHED   packet seen in the reverse direction
//	*   -> CLOSING       FIN seen from either side
//	*   -> CLOSED        FIN seen from both sides, or RST
//
// Flag combinations that match no expected transition leave the state
// unchanged, favoring availability over strict protocol conformance.
func advanceTCP(s *model.Session, flags model.TCPFlags, fromInitiator bool) {
	if flags.RST {
		s.State = model.StateClosed
		return
	}

	if !fromInitiator && !s.SeenReply {
		s.SeenReply = true
		if s.State == model.StateNew {
			s.State = model.StateEstablished
		}
	}

	if flags.FIN {
		if fromInitiator {
			s.FINFromSrc = true
		} else {
			s.FINFromDst = true
		}
		if s.FINFromSrc && s.FINFromDst {
			s.State = model.StateClosed
		} else {
			s.State = model.StateClosing
		}
		return
	}

	// The final ACK of a FIN/FIN exchange completes the teardown.
	if flags.ACK && s.FINFromSrc && s.FINFromDst {
		s.State = model.StateClosed
	}
}
