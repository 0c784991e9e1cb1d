// Package wardmon is the core of the wardmon application, providing individual
// components that work independently while communicating with each other over
// channels and the filesystem.
//
// Mechanism of Operation
//
// Control Directories
//
// wardmon is told what to run entirely through two directories, so that any
// program able to create and delete files can drive it without a socket or an
// RPC protocol.
//
// The configuration directory holds one JSON file per monitored process. The
// file name is the process' name, and the file body describes how to spawn it:
// the argv, optional environment overrides, and an optional uid/gid to drop
// to. Creating the file starts the process, rewriting it restarts the process
// with the new description, and deleting the file stops it. The presence of
// the file is the only record of what should be running.
//
// The messages directory is a one-way mailbox for transient commands, which
// currently are restart requests. Each command is a small JSON file under a
// unique name containing the sender's PID; wardmon consumes a command by
// reading and then deleting the file, so a command fires at most once even
// across daemon restarts.
//
// A control tree may look like this:
//
//    - ~/.config/wardmon/
//        - config/
//            - backupd
//            - tunnel.sh
//        - messages/
//            - 20354.1b4e28ba-2fa1-11d2-883f-0016d3cca427
//
// Writers produce files in either directory by writing to a dot-prefixed
// temporary name in the same directory and renaming it into place, so readers
// never observe a partial file. Dot-prefixed names are therefore ignored.
//
// Everything that happens to a monitored process is recorded as an event in an
// append-only journal, which also serves as the lock that keeps two wardmon
// instances from supervising the same directories.
package wardmon
