package command

// handlers is the full command table. Arity is the minimum argument
// count including the command name itself.
var handlers = []*Handler{
	{Name: "PING", Arity: 1, Fn: cmdPing},
	{Name: "ECHO", Arity: 2, Fn: cmdEcho},
	{Name: "QUIT", Arity: 1, Fn: cmdQuit},
	{Name: "SET", Arity: 3, Write: true, Fn: cmdSet},
	{Name: "GET", Arity: 2, Fn: cmdGet},
	{Name: "INCR", Arity: 2, Write: true, Fn: cmdIncr},
	{Name: "TYPE", Arity: 2, Fn: cmdType},
	{Name: "KEYS", Arity: 2, Fn: cmdKeys},
	{Name: "CONFIG", Arity: 3, Fn: cmdConfig},
	{Name: "INFO", Arity: 1, Fn: cmdInfo},

	{Name: "RPUSH", Arity: 3, Write: true, Fn: cmdRPush},
	{Name: "LPUSH", Arity: 3, Write: true, Fn: cmdLPush},
	{Name: "LRANGE", Arity: 4, Fn: cmdLRange},
	{Name: "LLEN", Arity: 2, Fn: cmdLLen},
	{Name: "LPOP", Arity: 2, Write: true, Fn: cmdLPop},
	{Name: "BLPOP", Arity: 3, Fn: cmdBLPop},

	{Name: "XADD", Arity: 5, Write: true, Fn: cmdXAdd},
	{Name: "XRANGE", Arity: 4, Fn: cmdXRange},
	{Name: "XREAD", Arity: 4, Fn: cmdXRead},
	{Name: "XLEN", Arity: 2, Fn: cmdXLen},

	{Name: "ZADD", Arity: 4, Write: true, Fn: cmdZAdd},
	{Name: "ZRANK", Arity: 3, Fn: cmdZRank},
	{Name: "ZRANGE", Arity: 4, Fn: cmdZRange},
	{Name: "ZCARD", Arity: 2, Fn: cmdZCard},
	{Name: "ZSCORE", Arity: 3, Fn: cmdZScore},
	{Name: "ZREM", Arity: 3, Write: true, Fn: cmdZRem},

	{Name: "MULTI", Arity: 1, Fn: cmdMulti},
	{Name: "EXEC", Arity: 1, Fn: cmdExec},
	{Name: "DISCARD", Arity: 1, Fn: cmdDiscard},

	{Name: "SUBSCRIBE", Arity: 2, Fn: cmdSubscribe},
	{Name: "UNSUBSCRIBE", Arity: 2, Fn: cmdUnsubscribe},
	{Name: "PUBLISH", Arity: 3, Fn: cmdPublish},

	{Name: "REPLCONF", Arity: 2, Fn: cmdReplConf},
	{Name: "PSYNC", Arity: 3, Fn: cmdPSync},
	{Name: "WAIT", Arity: 3, Fn: cmdWait},
}
