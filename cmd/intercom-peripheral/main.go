// Command intercom-peripheral runs the door side of the protocol: it advertises the intercom's
// GATT service, accepts BLE connections, issues a fresh challenge nonce per connection, and
// dispatches every Auth-characteristic write to internal/challenge.Engine. Modeled on
// cmd/tesla-control's flag-driven main, simplified to the one long-running loop a peripheral
// daemon needs instead of a command dispatch table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doorkeeper/intercom/internal/challenge"
	"github.com/doorkeeper/intercom/internal/credential"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/log"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/connector/ble"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// relayActuator is the default Actuator: it has no GPIO/relay driver backing it, since the
// door-strike hardware driver is explicitly out of scope, but it logs and reports success so the
// rest of the protocol engine can be exercised end to end on a bench.
type relayActuator struct{}

func (relayActuator) Unlock() (errorcode.DoorState, error) {
	log.Info("relayActuator: unlock")
	return errorcode.DoorUnlocked, nil
}

func loadVariant(mode, keyFile, masterKeyFile, signerPubFile string) (protocol.Variant, error) {
	switch mode {
	case "ecdh-gcm":
		skey, err := protocol.LoadPrivateKey(keyFile)
		if err != nil {
			return protocol.Variant{}, fmt.Errorf("loading identity key: %w", err)
		}
		signerPub, err := protocol.LoadPublicKey(signerPubFile)
		if err != nil {
			return protocol.Variant{}, fmt.Errorf("loading authority public key: %w", err)
		}
		return protocol.NewEcdhGCM(skey, signerPub.Bytes()), nil
	case "diversified-cbc":
		master, err := os.ReadFile(masterKeyFile)
		if err != nil {
			return protocol.Variant{}, fmt.Errorf("loading master key: %w", err)
		}
		return protocol.NewDiversifiedCbc(&protocol.MasterKeyProvider{MasterKey: master}), nil
	case "symmetric-demo":
		master, err := os.ReadFile(masterKeyFile)
		if err != nil {
			return protocol.Variant{}, fmt.Errorf("loading master key: %w", err)
		}
		signerPub, err := protocol.LoadPublicKey(signerPubFile)
		if err != nil {
			return protocol.Variant{}, fmt.Errorf("loading authority public key: %w", err)
		}
		return protocol.NewSymmetricDemo(master, signerPub.Bytes()), nil
	default:
		return protocol.Variant{}, fmt.Errorf("unknown -variant %q (want ecdh-gcm, diversified-cbc, or symmetric-demo)", mode)
	}
}

func main() {
	doorID := flag.String("door-id", "", "This intercom's door identifier")
	mode := flag.String("variant", "ecdh-gcm", "Protocol variant: ecdh-gcm, diversified-cbc, or symmetric-demo")
	keyFile := flag.String("key-file", "", "PEM file containing this intercom's P-256 identity key (ecdh-gcm)")
	masterKeyFile := flag.String("master-key-file", "", "file containing the site master key (diversified-cbc, symmetric-demo)")
	signerPubFile := flag.String("authority-pub-file", "", "file containing the credential-issuing authority's public key (ecdh-gcm, symmetric-demo)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.LevelDebug)
	}
	if *doorID == "" {
		writeErr("Error: -door-id is required")
		os.Exit(1)
	}

	variant, err := loadVariant(*mode, *keyFile, *masterKeyFile, *signerPubFile)
	if err != nil {
		writeErr("Error: %s", err)
		os.Exit(1)
	}
	engine := protocol.NewPeripheralEngine(variant)

	doorConfig := challenge.DoorConfig{
		DoorID: *doorID,
		Audit:  credential.NewAuditor(os.Stderr),
	}
	challengeEngine := challenge.NewEngine(doorConfig, relayActuator{})
	manager := session.NewManager(session.DefaultLimits())

	adapter, err := newPeripheralAdapter()
	if err != nil {
		writeErr("Error: %s", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	localName := ble.LocalName(*doorID)
	log.Info("intercom-peripheral: advertising as %s", localName)
	onConnect := func(conn ble.PeripheralConn) {
		handleConnection(challengeEngine, manager, engine, conn)
	}
	if err := adapter.Advertise(ctx, localName, onConnect); err != nil && ctx.Err() == nil {
		writeErr("Error: advertising stopped: %s", err)
		os.Exit(1)
	}
}

func handleConnection(engine *challenge.Engine, manager *session.Manager, peripheral *protocol.PeripheralEngine, raw ble.PeripheralConn) {
	pc := ble.NewPeripheralConnection(raw)
	peerHandle := fmt.Sprintf("%p", raw)
	peerLog := log.Peer(peerHandle)

	if err := manager.AllowGlobal(); err != nil {
		peerLog.Warning("connection rejected: %s", err)
		pc.Close()
		return
	}
	sess, err := manager.Connect(peerHandle, raw.MTU())
	if err != nil {
		peerLog.Warning("connection rejected: %s", err)
		pc.Close()
		return
	}

	nonce, err := sess.IssueNonce(func() {
		peerLog.Debug("challenge nonce expired")
	})
	if err != nil {
		peerLog.Warning("failed to issue nonce: %s", err)
		manager.Disconnect(peerHandle)
		pc.Close()
		return
	}
	if err := pc.SendChallenge(nonce); err != nil {
		peerLog.Warning("failed to send challenge: %s", err)
		manager.Disconnect(peerHandle)
		pc.Close()
		return
	}

	for raw := range pc.Receive() {
		resp, err := engine.HandleAuth(sess, peripheral.Variant(), raw, time.Now())
		if resp != nil {
			if sendErr := pc.SendResponse(resp); sendErr != nil {
				peerLog.Warning("failed to send response: %s", sendErr)
				break
			}
		}
		if err != nil {
			peerLog.Info("auth exchange ended: %s", err)
			break
		}
	}
	manager.Disconnect(peerHandle)
	pc.Close()
}

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
}
