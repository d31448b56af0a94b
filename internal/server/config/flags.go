package config

import (
	"flag"
	"os"

	"github.com/docker/go-units"

	"github.com/dmitrijs2005/dekinai/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., "127.0.0.1:54298"); "-a=" disables TCP
//	-x string   unix socket path
//	-o string   output directory
//	-d string   database DSN ("sqlite://path" or "postgres://...")
//	-w string   global upload password
//	-P          prompt for the global upload password
//	-b list     blacklisted extensions, comma separated, repeatable
//	-m string   max upload size ("25MB"), 0 for unlimited
//	-k string   secret hash algorithm (pbkdf2, argon2id)
//	-i int      max identifier reservation attempts
//	-t string   storage backend (local, s3)
//	-e string   S3 base endpoint
//	-n string   S3 bucket
//	-r string   S3 region
//	-g string   gRPC health bind address
//	-l string   log level
//	-f string   log format (json, text)
//
// Only the flags listed here are taken from os.Args, see flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-x", "-o", "-d", "-w", "-b", "-m", "-k", "-i", "-t", "-e", "-n", "-r", "-g", "-l", "-f"},
		"-P",
	)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.UnixSocket, "x", config.UnixSocket, "unix socket to listen on")
	fs.StringVar(&config.OutputDir, "o", config.OutputDir, "output directory for uploads")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Password, "w", config.Password, "upload password")
	fs.BoolVar(&config.PromptPassword, "P", config.PromptPassword, "read upload password from terminal")

	var blacklist flagx.StringList
	fs.Var(&blacklist, "b", "blacklisted file extensions")

	maxUpload := fs.String("m", units.BytesSize(float64(config.MaxUploadSize)), "max upload size")

	fs.StringVar(&config.HashAlgorithm, "k", config.HashAlgorithm, "deletion secret hash algorithm")
	fs.IntVar(&config.MaxReserveAttempts, "i", config.MaxReserveAttempts, "max reservation attempts")
	fs.StringVar(&config.StorageBackend, "t", config.StorageBackend, "storage backend")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Bucket, "n", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.HealthAddrGRPC, "g", config.HealthAddrGRPC, "gRPC health address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if len(blacklist) > 0 {
		config.Blacklist = blacklist
	}

	if isFlagSet(fs, "m") {
		size, err := ParseSize(*maxUpload)
		if err != nil {
			panic(err)
		}
		config.MaxUploadSize = size
	}
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
