package contract

// Contract ABIs, trimmed to the surface the client consumes.

const lotteryGameABI = `[
	{"inputs":[{"name":"nickname","type":"string"}],"name":"registerUser","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"betAmount","type":"uint256"}],"name":"playLottery","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"claimRewards","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"","type":"address"}],"name":"users","outputs":[{"name":"isRegistered","type":"bool"},{"name":"nickname","type":"string"},{"name":"registrationTime","type":"uint256"},{"name":"totalBets","type":"uint256"},{"name":"totalWins","type":"uint256"},{"name":"gamesPlayed","type":"uint256"},{"name":"pendingRewards","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"currentToken","outputs":[{"type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"gameConfig","outputs":[{"name":"minBet","type":"uint256"},{"name":"maxBet","type":"uint256"},{"name":"houseFeePercentage","type":"uint256"},{"name":"isActive","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getQuickBetOptions","outputs":[{"type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getAllPayoutRates","outputs":[{"type":"uint256[8]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"seed","type":"uint256"}],"name":"simulateLottery","outputs":[{"type":"uint8[3]"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"player","type":"address"},{"indexed":true,"name":"gameId","type":"uint256"},{"indexed":false,"name":"symbols","type":"uint8[3]"},{"indexed":false,"name":"betAmount","type":"uint256"},{"indexed":false,"name":"winAmount","type":"uint256"},{"indexed":false,"name":"tokenContract","type":"address"}],"name":"GamePlayed","type":"event"}
]`

const erc20ABI = `[
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"name","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"type":"uint8"}],"stateMutability":"view","type":"function"}
]`
