package central_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/pkg/central"
	"github.com/doorkeeper/intercom/pkg/central/centralmock"
)

func TestUnlockEcdhGCMHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := centralmock.NewMockTransport(ctrl)

	intercomKey, err := intercrypto.GenerateP256Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	centralKey, err := intercrypto.GenerateP256Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	nonceC, err := intercrypto.RandomBytes(intercrypto.NonceSize)
	if err != nil {
		t.Fatal(err)
	}

	challengeCh := make(chan []byte, 1)
	challengeCh <- nonceC
	receiveCh := make(chan []byte, 1)

	transport.EXPECT().Challenge().Return((<-chan []byte)(challengeCh)).AnyTimes()
	transport.EXPECT().Receive().Return((<-chan []byte)(receiveCh)).AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, raw []byte) error {
		authFrame, err := frame.DecodeAuthFrame(raw)
		if err != nil {
			t.Fatalf("peripheral: decode Auth frame: %s", err)
		}
		shared, err := intercomKey.Exchange(authFrame.PubM)
		if err != nil {
			t.Fatalf("peripheral: ecdh exchange: %s", err)
		}
		km2i, ki2m, err := intercrypto.DeriveSessionKeys(shared, nonceC)
		if err != nil {
			t.Fatal(err)
		}
		sealed := append(append([]byte{}, authFrame.Ciphertext...), authFrame.Tag...)
		plaintext, err := intercrypto.Open(km2i, authFrame.NonceM, sealed, []byte{authFrame.Version})
		if err != nil {
			t.Fatalf("peripheral: open Auth ciphertext: %s", err)
		}
		payload, err := frame.DecodeAuthRequestPayload(plaintext)
		if err != nil {
			t.Fatal(err)
		}
		if payload.Credential != "test-credential" {
			t.Fatalf("unexpected credential: %q", payload.Credential)
		}

		nonceI, err := intercrypto.RandomBytes(intercrypto.NonceSize)
		if err != nil {
			t.Fatal(err)
		}
		respBody := frame.EncodeResponseBody(frame.ResponseBody{Status: byte(errorcode.Success), DoorState: byte(errorcode.DoorUnlocked)})
		respSealed, err := intercrypto.Seal(ki2m, nonceI, respBody, nil)
		if err != nil {
			t.Fatal(err)
		}
		respFrame, err := frame.EncodeResponseFrame(frame.ResponseFrame{
			NonceI:     nonceI,
			Ciphertext: respSealed[:len(respSealed)-intercrypto.TagSize],
			Tag:        respSealed[len(respSealed)-intercrypto.TagSize:],
		}, 0)
		if err != nil {
			t.Fatal(err)
		}
		receiveCh <- respFrame
		return nil
	}).AnyTimes()

	c := central.New(transport)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doorState, err := c.UnlockEcdhGCM(ctx, central.EcdhGCMConfig{
		PrivateKey:        centralKey,
		IntercomPublicKey: intercomKey.PublicBytes(),
		Credential:        "test-credential",
	})
	if err != nil {
		t.Fatalf("UnlockEcdhGCM: %s", err)
	}
	if doorState != errorcode.DoorUnlocked {
		t.Fatalf("expected DoorUnlocked, got %s", doorState)
	}
	if c.State() != central.Complete {
		t.Fatalf("expected Complete, got %s", c.State())
	}
}

func TestUnlockEcdhGCMRejectsBadResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := centralmock.NewMockTransport(ctrl)

	intercomKey, err := intercrypto.GenerateP256Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	centralKey, err := intercrypto.GenerateP256Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	nonceC, err := intercrypto.RandomBytes(intercrypto.NonceSize)
	if err != nil {
		t.Fatal(err)
	}
	challengeCh := make(chan []byte, 1)
	challengeCh <- nonceC
	receiveCh := make(chan []byte, 1)

	transport.EXPECT().Challenge().Return((<-chan []byte)(challengeCh)).AnyTimes()
	transport.EXPECT().Receive().Return((<-chan []byte)(receiveCh)).AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, raw []byte) error {
		receiveCh <- []byte{0x01, 0x02, 0x03}
		return nil
	}).AnyTimes()

	c := central.New(transport)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = c.UnlockEcdhGCM(ctx, central.EcdhGCMConfig{
		PrivateKey:        centralKey,
		IntercomPublicKey: intercomKey.PublicBytes(),
		Credential:        "test-credential",
	})
	if err == nil {
		t.Fatal("expected error decoding truncated response")
	}
	if c.State() != central.Failed {
		t.Fatalf("expected Failed, got %s", c.State())
	}
}

func TestUnlockDiversifiedCbcHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := centralmock.NewMockTransport(ctrl)

	key, err := intercrypto.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	deviceUID, err := intercrypto.RandomBytes(8)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := intercrypto.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}

	receiveCh := make(chan []byte, 1)
	transport.EXPECT().Challenge().Return((<-chan []byte)(make(chan []byte))).AnyTimes()
	transport.EXPECT().Receive().Return((<-chan []byte)(receiveCh)).AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, raw []byte) error {
		f, err := frame.DecodeVariantBFrame(raw)
		if err != nil {
			t.Fatal(err)
		}
		switch f.Tag {
		case frame.TagAuthRequest:
			req, err := frame.DecodeAuthRequestValue(f.Value)
			if err != nil {
				t.Fatal(err)
			}
			raPrime, err := intercrypto.EncryptECBBlock(key, req.Ra)
			if err != nil {
				t.Fatal(err)
			}
			value, err := frame.EncodeAuthChallengeValue(frame.AuthChallengeValue{RaPrime: raPrime, Rb: rb})
			if err != nil {
				t.Fatal(err)
			}
			out, err := frame.EncodeVariantBFrame(frame.VariantBFrame{Start: frame.StartPlain, Tag: frame.TagAuthChallenge, Seq: 0, Value: value}, 0)
			if err != nil {
				t.Fatal(err)
			}
			receiveCh <- out
		case frame.TagAuthConfirm:
			confirm, err := frame.DecodeAuthConfirmValue(f.Value)
			if err != nil {
				t.Fatal(err)
			}
			wantRbPrime, err := intercrypto.EncryptECBBlock(key, rb)
			if err != nil {
				t.Fatal(err)
			}
			if string(wantRbPrime) != string(confirm.RbPrime) {
				t.Fatalf("bad RbPrime")
			}
			out, err := frame.EncodeVariantBFrame(frame.VariantBFrame{Start: frame.StartEncrypted, Tag: 0, Seq: 2, Value: []byte{0x00}}, 0)
			if err != nil {
				t.Fatal(err)
			}
			receiveCh <- out
		default:
			t.Fatalf("unexpected tag %x", f.Tag)
		}
		return nil
	}).AnyTimes()

	c := central.New(transport)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doorState, err := c.UnlockDiversifiedCbc(ctx, central.DiversifiedCbcConfig{DeviceUID: deviceUID, Key: key})
	if err != nil {
		t.Fatalf("UnlockDiversifiedCbc: %s", err)
	}
	if doorState != errorcode.DoorUnlocked {
		t.Fatalf("expected DoorUnlocked, got %s", doorState)
	}
}

func TestUnlockSymmetricDemoHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := centralmock.NewMockTransport(ctrl)

	key, err := intercrypto.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	deviceID, err := intercrypto.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}

	receiveCh := make(chan []byte, 1)
	transport.EXPECT().Challenge().Return((<-chan []byte)(make(chan []byte))).AnyTimes()
	transport.EXPECT().Receive().Return((<-chan []byte)(receiveCh)).AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, raw []byte) error {
		msgType, body, err := frame.DecodeMessageType(raw)
		if err != nil {
			t.Fatal(err)
		}
		switch msgType {
		case frame.MsgAuthRequest:
			req, err := frame.DecodeAuthRequest(body)
			if err != nil {
				t.Fatal(err)
			}
			nonceM, err := intercrypto.DecryptCBCNoPad(key, req.IV, req.EncryptedNonce)
			if err != nil {
				t.Fatal(err)
			}
			nonceR, err := intercrypto.RandomBytes(16)
			if err != nil {
				t.Fatal(err)
			}
			respIV, err := intercrypto.RandomBytes(16)
			if err != nil {
				t.Fatal(err)
			}
			encNonces, err := intercrypto.EncryptCBCNoPad(key, respIV, append(append([]byte{}, nonceM...), nonceR...))
			if err != nil {
				t.Fatal(err)
			}
			out, err := frame.EncodeAuthResponse(frame.AuthResponseMsg{IV: respIV, EncryptedNonces: encNonces})
			if err != nil {
				t.Fatal(err)
			}
			receiveCh <- out
		case frame.MsgCredential:
			if _, err := frame.DecodeCredential(body); err != nil {
				t.Fatal(err)
			}
			receiveCh <- frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: frame.CredentialSuccess})
		default:
			t.Fatalf("unexpected message type %v", msgType)
		}
		return nil
	}).AnyTimes()

	c := central.New(transport)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cred := append([]byte{}, deviceID...)
	err = c.UnlockSymmetricDemo(ctx, central.SymmetricDemoConfig{
		DeviceID:          deviceID,
		DiversifiedKey:    key,
		CredentialPayload: cred,
	})
	if err != nil {
		t.Fatalf("UnlockSymmetricDemo: %s", err)
	}
	if c.State() != central.Complete {
		t.Fatalf("expected Complete, got %s", c.State())
	}
}
