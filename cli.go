// Copyright 2021 Hailiang Zhao <hliangzhao@zju.edu.cn>
// This file is part of the lightChain.
//
// The lightChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The lightChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the lightChain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	`flag`
	`fmt`
	`os`
	`strconv`

	`lightChain/core`
)

// parseAmount parses a positive, non-zero transfer amount.
func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a valid non-negative integer: %w", s, err)
	}
	if amount == 0 {
		return 0, fmt.Errorf("amount must be greater than zero")
	}
	return amount, nil
}

const (
	dbFile     = "lightchain.db"
	walletFile = "wallets.db"
)

// CLI is the command line interface for lightChain: a single-node ledger
// with no mempool or network protocol, so every command acts immediately on
// the local chain.
type CLI struct{}

const usage = `Usage:
	address                            --- generate a new wallet address and save it locally
	coinbase TO                        --- create the chain, paying its genesis block reward to TO
	send FROM TO AMOUNT                --- send AMOUNT from FROM to TO, mining a new block immediately
	balance ADDRESS                    --- print the spendable balance of ADDRESS
	printchain                         --- print every block from the tip to genesis`

func (cli *CLI) printUsage() {
	fmt.Println(usage)
}

func (cli *CLI) fail(err error) {
	fmt.Fprintf(os.Stderr, "lightChain: %v\n", err)
	os.Exit(1)
}

// address generates a new wallet, persists it to walletFile, and prints its
// base58 address.
func (cli *CLI) address() {
	wm, err := core.OpenWalletManager(walletFile)
	if err != nil {
		cli.fail(err)
	}
	addr, err := wm.CreateWallet()
	if err != nil {
		cli.fail(err)
	}
	fmt.Println(addr)
}

// coinbase mines the genesis block, paying its reward to to.
func (cli *CLI) coinbase(to string) {
	if !core.ValidateAddress(to) {
		cli.fail(fmt.Errorf("address %q is not valid", to))
	}
	chain, err := core.CreateBlockchain(dbFile, to)
	if err != nil {
		cli.fail(err)
	}
	fmt.Printf("chain created, genesis hash %x\n", genesisHash(chain))
}

// genesisHash reports the hash of the chain's first block, for coinbase's
// confirmation message.
func genesisHash(chain *core.Blockchain) []byte {
	iter := chain.Iterator()
	var hash []byte
	for {
		block, err := iter.Next()
		if err != nil {
			return hash
		}
		hash = block.Hash
		if block.IsGenesis() {
			return hash
		}
	}
}

// send moves amount from from to to and mines the resulting block
// immediately, crediting from with the new block's coinbase reward.
func (cli *CLI) send(from, to string, amount uint64) {
	if !core.ValidateAddress(from) {
		cli.fail(fmt.Errorf("address %q is not valid", from))
	}
	if !core.ValidateAddress(to) {
		cli.fail(fmt.Errorf("address %q is not valid", to))
	}

	chain, err := core.OpenBlockchain(dbFile)
	if err != nil {
		cli.fail(err)
	}
	wm, err := core.OpenWalletManager(walletFile)
	if err != nil {
		cli.fail(err)
	}
	wallet, err := wm.Get(from)
	if err != nil {
		cli.fail(err)
	}

	tx, err := chain.NewUTXOTransaction(wallet, to, amount)
	if err != nil {
		cli.fail(err)
	}
	coinbaseTx, err := core.NewCoinbaseTx(from, "")
	if err != nil {
		cli.fail(err)
	}

	block, err := chain.MineBlock([]*core.Transaction{coinbaseTx, tx})
	if err != nil {
		cli.fail(err)
	}
	fmt.Printf("mined block %x\n", block.Hash)
}

// balance prints the spendable balance of address.
func (cli *CLI) balance(address string) {
	if !core.ValidateAddress(address) {
		cli.fail(fmt.Errorf("address %q is not valid", address))
	}
	chain, err := core.OpenBlockchain(dbFile)
	if err != nil {
		cli.fail(err)
	}
	bal, err := chain.Balance(address)
	if err != nil {
		cli.fail(err)
	}
	fmt.Printf("%s: %d\n", address, bal)
}

// printChain walks the chain from the tip to genesis, printing each block.
func (cli *CLI) printChain() {
	chain, err := core.OpenBlockchain(dbFile)
	if err != nil {
		cli.fail(err)
	}

	iter := chain.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			cli.fail(err)
		}
		fmt.Printf("timestamp:  %d\n", block.TimeStamp)
		fmt.Printf("prev hash:  %x\n", block.PrevBlockHash)
		fmt.Printf("merkle root: %x\n", block.MerkleRoot)
		fmt.Printf("hash:       %x\n", block.Hash)
		fmt.Printf("nonce:      %d\n", block.Nonce)
		fmt.Printf("valid PoW:  %t\n\n", block.Validate())

		if block.IsGenesis() {
			break
		}
	}
}

// Run parses os.Args and dispatches to the matching subcommand.
func (cli *CLI) Run() {
	if len(os.Args) < 2 {
		cli.printUsage()
		os.Exit(1)
	}

	addressCmd := flag.NewFlagSet("address", flag.ExitOnError)
	coinbaseCmd := flag.NewFlagSet("coinbase", flag.ExitOnError)
	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	balanceCmd := flag.NewFlagSet("balance", flag.ExitOnError)
	printChainCmd := flag.NewFlagSet("printchain", flag.ExitOnError)

	switch os.Args[1] {
	case "address":
		_ = addressCmd.Parse(os.Args[2:])
		cli.address()
	case "coinbase":
		_ = coinbaseCmd.Parse(os.Args[2:])
		if coinbaseCmd.NArg() != 1 {
			coinbaseCmd.Usage()
			os.Exit(1)
		}
		cli.coinbase(coinbaseCmd.Arg(0))
	case "send":
		_ = sendCmd.Parse(os.Args[2:])
		if sendCmd.NArg() != 3 {
			sendCmd.Usage()
			os.Exit(1)
		}
		amount, err := parseAmount(sendCmd.Arg(2))
		if err != nil {
			cli.fail(err)
		}
		cli.send(sendCmd.Arg(0), sendCmd.Arg(1), amount)
	case "balance":
		_ = balanceCmd.Parse(os.Args[2:])
		if balanceCmd.NArg() != 1 {
			balanceCmd.Usage()
			os.Exit(1)
		}
		cli.balance(balanceCmd.Arg(0))
	case "printchain":
		_ = printChainCmd.Parse(os.Args[2:])
		cli.printChain()
	default:
		cli.printUsage()
		os.Exit(1)
	}
}
