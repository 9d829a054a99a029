package smb1

import (
	"encoding/hex"
	"fmt"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// ntlmsspType1Hex is a SPNEGO NegTokenInit offering NTLMSSP, carrying a
// minimal NTLMSSP NEGOTIATE (Type 1) message with no flags requiring
// confirmation from the server. The 3DS's microSD Management applet
// completes SMB_COM_SESSION_SETUP_ANDX on receipt of this token without
// validating any credentials or security flags — it is not performing real
// authentication, just checking that a client speaks SPNEGO/NTLMSSP at all.
const ntlmsspType1Hex = "604006062b0601050502a0363034a00e300c060a2b0601040182370202" +
	"0aa22204204e544c4d5353500001000000050208a00000000000000000" +
	"0000000000000000"

// OIDNTLMSSP identifies the NTLM Security Support Provider mechanism within
// a SPNEGO NegTokenInit (1.3.6.1.4.1.311.2.2.10).
var OIDNTLMSSP = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}

// NTLMSSPOffer is the decoded, validated SPNEGO-wrapped NTLMSSP Type-1 token
// sent as the SecurityBlob of SMB_COM_SESSION_SETUP_ANDX.
type NTLMSSPOffer struct {
	raw       []byte
	mechToken []byte
}

// NewNTLMSSPOffer decodes the fixed NTLMSSP offer blob and validates it is a
// well-formed SPNEGO NegTokenInit that advertises NTLMSSP, so a malformed
// constant is caught at startup rather than surfacing as a mysterious
// session-setup failure against real hardware.
func NewNTLMSSPOffer() (*NTLMSSPOffer, error) {
	raw, err := hex.DecodeString(ntlmsspType1Hex)
	if err != nil {
		return nil, fmt.Errorf("smb1: decode NTLMSSP offer: %w", err)
	}

	// raw is a GSS-API InitialContextToken: an [APPLICATION 0] wrapper holding
	// the SPNEGO mechanism OID followed by the NegotiationToken.
	var wrapper asn1.RawValue
	if _, err := asn1.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("smb1: parse NTLMSSP offer: %w", err)
	}
	var mechOID asn1.ObjectIdentifier
	negToken, err := asn1.Unmarshal(wrapper.Bytes, &mechOID)
	if err != nil {
		return nil, fmt.Errorf("smb1: parse NTLMSSP offer: %w", err)
	}
	if !mechOID.Equal(asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 2}) {
		return nil, fmt.Errorf("smb1: NTLMSSP offer is not SPNEGO")
	}

	isInit, token, err := spnego.UnmarshalNegToken(negToken)
	if err != nil {
		return nil, fmt.Errorf("smb1: parse NTLMSSP offer: %w", err)
	}
	if !isInit {
		return nil, fmt.Errorf("smb1: NTLMSSP offer is not a NegTokenInit")
	}
	initToken, ok := token.(spnego.NegTokenInit)
	if !ok {
		return nil, fmt.Errorf("smb1: unexpected SPNEGO token type")
	}

	hasNTLM := false
	for _, mech := range initToken.MechTypes {
		if mech.Equal(OIDNTLMSSP) {
			hasNTLM = true
			break
		}
	}
	if !hasNTLM {
		return nil, fmt.Errorf("smb1: NTLMSSP offer does not advertise NTLMSSP")
	}

	return &NTLMSSPOffer{raw: raw, mechToken: initToken.MechTokenBytes}, nil
}

// Bytes returns the full SPNEGO-wrapped security blob.
func (o *NTLMSSPOffer) Bytes() []byte { return o.raw }

// Len returns len(Bytes()), used for the SecurityBlobLength field of
// SMB_COM_SESSION_SETUP_ANDX.
func (o *NTLMSSPOffer) Len() int { return len(o.raw) }
