package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/convo/internal/adapters/rtc"
	"github.com/dkeye/convo/internal/callclient"
	"github.com/dkeye/convo/internal/domain"
)

const usage = `commands:
  /call <name>   start a dm call
  /accept        accept the ringing call
  /reject        reject the ringing dm call
  /hangup        end or cancel the current call
  /room          offer a call to the room
  /group         join the room's group call
  /leave         leave the group call
  /share         share screen (connected dm call only)
  /unshare       back to camera
  /mute, /unmute toggle outgoing audio
anything else is sent as chat`

func main() {
	server := pflag.String("server", "ws://localhost:8080/api/ws/signal", "signaling websocket URL")
	name := pflag.String("name", "", "display name")
	room := pflag.String("room", "lobby", "room to join")
	call := pflag.String("call", "", "dm this identity right after joining")
	group := pflag.Bool("group", false, "join the room's group call after joining")
	autoAccept := pflag.Bool("auto-accept", false, "accept every inbound call")
	ringTimeout := pflag.Duration("ring-timeout", callclient.DefaultRingTimeout, "how long a call may ring unanswered")
	groupMax := pflag.Int("group-max", 4, "room group call capacity")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if lvl, err := zerolog.ParseLevel(*level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	self, err := domain.NewIdentity(*name)
	if err != nil {
		log.Fatal().Err(err).Msg("--name")
	}
	roomID, err := domain.NewRoomID(*room)
	if err != nil {
		log.Fatal().Err(err).Msg("--room")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	media, err := rtc.NewMedia(string(self))
	if err != nil {
		log.Fatal().Err(err).Msg("local media")
	}
	conn, err := callclient.Dial(ctx, *server)
	if err != nil {
		log.Fatal().Err(err).Msg("signaling")
	}
	defer conn.Close()

	sess := callclient.NewSession(self, conn, rtc.Factory(ctx, rtc.DefaultWebRTCConfig(), media), callclient.Options{
		RingTimeout: *ringTimeout,
		GroupMax:    *groupMax,
		Notify:      func(text string) { fmt.Println(text) },
	})

	if err := conn.Join(self, roomID); err != nil {
		log.Fatal().Err(err).Msg("join")
	}
	if *call != "" {
		if err := sess.CallDM(domain.Identity(*call)); err != nil {
			log.Error().Err(err).Msg("call")
		}
	}
	if *group {
		if err := sess.JoinGroup(); err != nil {
			log.Error().Err(err).Msg("group")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return media.Run(gctx) })
	g.Go(func() error {
		defer sess.Disconnected()
		return conn.ReadLoop(gctx, func(data []byte) {
			sess.Handle(data)
			if *autoAccept {
				accept(sess)
			}
		})
	})
	go commands(sess, conn, media)

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("client stopped")
		os.Exit(1)
	}
}

func accept(sess *callclient.Session) {
	st, scope, _ := sess.State()
	if st != callclient.Ringing {
		return
	}
	var err error
	if scope == callclient.ScopeDM {
		err = sess.AcceptDM()
	} else {
		err = sess.AcceptRoomCall()
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("auto accept")
	}
}

// commands reads user input from stdin until it closes.
func commands(sess *callclient.Session, conn *callclient.Conn, media *rtc.Media) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		var err error
		switch cmd {
		case "/call":
			err = sess.CallDM(domain.Identity(strings.TrimSpace(arg)))
		case "/accept":
			accept(sess)
		case "/reject":
			err = sess.RejectDM()
		case "/hangup":
			err = sess.Hangup()
		case "/room":
			err = sess.StartRoomCall()
		case "/group":
			err = sess.JoinGroup()
		case "/leave":
			err = sess.LeaveGroup()
		case "/share":
			err = sess.StartScreenShare()
		case "/unshare":
			err = sess.StopScreenShare()
		case "/mute", "/unmute":
			media.SetMuted(cmd == "/mute")
			if media.Muted() {
				fmt.Println("[AUDIO] muted")
			} else {
				fmt.Println("[AUDIO] live")
			}
		case "/help":
			fmt.Println(usage)
		default:
			err = conn.Chat(line)
		}
		if err != nil {
			fmt.Println("[ERROR]", err)
		}
	}
}
