package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/meshdraw/meshdraw/collab"
)

const DrawCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Meshdraw control.

Host a shared canvas, join one by ticket, or inspect a document file.
The default document path is $XDG_DATA_HOME/meshdraw/document.meshdoc.

Usage:
    drawctl host [--listen=<addr>] [--file=<path>] [--autosave=<seconds>]
    drawctl join <ticket> [--file=<path>] [--autosave=<seconds>]
    drawctl info [--file=<path>]
    drawctl decode-ticket <ticket>

Options:
    -h --help              Show this screen.
    --version              Show version.
    --listen=<addr>        Listen address [default: 127.0.0.1:0].
    --file=<path>          Document file to load and save.
    --autosave=<seconds>   Save the document on this interval [default: 30].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], DrawCtlVersion)
	if err != nil {
		panic(err)
	}

	if host_, _ := opts.Bool("host"); host_ {
		host(opts)
	} else if join_, _ := opts.Bool("join"); join_ {
		join(opts)
	} else if info_, _ := opts.Bool("info"); info_ {
		info(opts)
	} else if decodeTicket_, _ := opts.Bool("decode-ticket"); decodeTicket_ {
		decodeTicket(opts)
	}
}

func documentPath(opts docopt.Opts) string {
	if path, err := opts.String("--file"); err == nil && path != "" {
		return path
	}
	return collab.DefaultStoragePath()
}

func openDocument(path string) *collab.Document {
	if _, err := os.Stat(path); err == nil {
		document, err := collab.LoadDocument(path)
		if err != nil {
			Err.Fatalf("Could not load document (%s).", err)
		}
		Out.Printf("Loaded document %s from %s", document.Id(), path)
		return document
	}
	document := collab.NewDocument()
	document.SetStoragePath(path)
	Out.Printf("Created document %s", document.Id())
	return document
}

func host(opts docopt.Opts) {
	listenAddress, _ := opts.String("--listen")
	document := openDocument(documentPath(opts))

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := collab.DefaultSessionSettings()
	settings.ListenAddress = listenAddress

	session, err := collab.NewSession(cancelCtx, document, settings)
	if err != nil {
		Err.Fatalf("Could not start session (%s).", err)
	}

	run(cancelCtx, cancel, session, document, autosaveInterval(opts))
}

func join(opts docopt.Opts) {
	ticket, _ := opts.String("<ticket>")
	document := openDocument(documentPath(opts))

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := collab.NewSessionWithDefaults(cancelCtx, document)
	if err != nil {
		Err.Fatalf("Could not start session (%s).", err)
	}
	if err := session.Join(ticket); err != nil {
		Err.Fatalf("Could not join (%s).", err)
	}

	run(cancelCtx, cancel, session, document, autosaveInterval(opts))
}

func autosaveInterval(opts docopt.Opts) time.Duration {
	seconds, err := opts.Int("--autosave")
	if err != nil || seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func run(
	ctx context.Context,
	cancel context.CancelFunc,
	session *collab.Session,
	document *collab.Document,
	autosave time.Duration,
) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	saveTicker := time.NewTicker(autosave)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			Out.Printf("Shutting down.")
			session.Shutdown()
			if document.IsDirty() {
				if err := document.Save(); err != nil {
					Err.Printf("Save failed (%s).", err)
				}
			}
			cancel()
			return
		case <-saveTicker.C:
			if document.IsDirty() {
				if err := document.Save(); err != nil {
					Err.Printf("Autosave failed (%s).", err)
				}
			}
		case event := <-session.Events():
			printEvent(session, event)
		}
	}
}

func printEvent(session *collab.Session, event *collab.SessionEvent) {
	switch event.Type {
	case collab.SessionEventReady:
		Out.Printf("Ready. Share this ticket:")
		Out.Printf("%s", event.Ticket)
	case collab.SessionEventDocumentChanged:
		Out.Printf("Document changed (%d shapes).", session.Document().ShapeCount())
	case collab.SessionEventPeerConnected:
		Out.Printf("Peer %s connected.", event.PeerId)
	case collab.SessionEventPeerDisconnected:
		Out.Printf("Peer %s disconnected.", event.PeerId)
	case collab.SessionEventPresenceUpdated:
		Out.Printf(
			"%s at (%d,%d): %s",
			event.Presence.DisplayName(),
			event.Presence.CursorPos.X,
			event.Presence.CursorPos.Y,
			event.Presence.Activity.Label(),
		)
	case collab.SessionEventPresenceRemoved:
		Out.Printf("Peer %s left.", event.PeerId)
	case collab.SessionEventError:
		Err.Printf("Session error (%s).", event.Err)
	}
}

func info(opts docopt.Opts) {
	path := documentPath(opts)
	document, err := collab.LoadDocument(path)
	if err != nil {
		Err.Fatalf("Could not load document (%s).", err)
	}

	Out.Printf("document %s", document.Id())
	Out.Printf("shapes   %d", document.ShapeCount())
	Out.Printf("layers   %d", len(document.ReadAllLayers()))
	Out.Printf("groups   %d", len(document.ReadAllGroups()))
	Out.Printf("undo     %d", document.UndoDepth())
	for _, record := range document.ReadAllShapes() {
		Out.Printf("  %s %s", record.Id, record.Shape.Kind)
	}
}

func decodeTicket(opts docopt.Opts) {
	ticketStr, _ := opts.String("<ticket>")
	ticket, err := collab.DecodeTicket(ticketStr)
	if err != nil {
		Err.Fatalf("Invalid ticket (%s).", err)
	}
	Out.Printf("peer  %s", ticket.PeerId)
	for _, addr := range ticket.Addrs {
		Out.Printf("addr  %s", addr)
	}
}
