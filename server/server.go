package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"path/filepath"

	"github.com/gliderlabs/ssh"
	"github.com/zond/textmud/game"
	"github.com/zond/textmud/pemfile"
	"github.com/zond/textmud/storage"
	"gopkg.in/natefinch/lumberjack.v2"

	gossh "golang.org/x/crypto/ssh"
)

func main() {
	iface := flag.String("iface", "127.0.0.1:8080", "Where to listen for TCP connections")
	sshIface := flag.String("ssh_iface", "", "Where to listen for SSH connections, empty to disable")
	dir := flag.String("dir", filepath.Join(os.Getenv("HOME"), ".textmud"), "Where to save database and settings")
	logPath := flag.String("log", "", "Where to write logs, empty for stderr")

	flag.Parse()

	if *logPath != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   *logPath,
			MaxSize:    10,
			MaxBackups: 3,
		})
	}

	if err := os.MkdirAll(*dir, 0700); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	s, err := storage.New(ctx, *dir)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	g, err := game.New(ctx, s)
	if err != nil {
		log.Fatal(err)
	}

	if *sshIface != "" {
		privatePEMPath := filepath.Join(*dir, "private.pem")
		publicPEMPath := filepath.Join(*dir, "public.pem")
		if _, err := os.Stat(privatePEMPath); os.IsNotExist(err) {
			if err := pemfile.GenKeyPair(privatePEMPath, publicPEMPath); err != nil {
				log.Fatal(err)
			}
			log.Printf("Generated server key pair in %q", *dir)
		} else if err != nil {
			log.Fatal(err)
		}
		pemBytes, err := os.ReadFile(privatePEMPath)
		if err != nil {
			log.Fatal(err)
		}
		signer, err := gossh.ParsePrivateKey(pemBytes)
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			log.Printf("Listening on %q with public key %q", *sshIface, gossh.FingerprintSHA256(signer.PublicKey()))
			log.Fatal(ssh.ListenAndServe(*sshIface, g.HandleSession, ssh.HostKeyPEM(pemBytes)))
		}()
	}

	listener, err := net.Listen("tcp", *iface)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Listening on %q", *iface)
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Fatal(err)
		}
		go g.HandleConn(ctx, conn)
	}
}
