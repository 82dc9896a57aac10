package onchain

import "math/big"

// Fee tiers probed when locating a pool, in hundredths of a bip.
var feeTiers = []int64{500, 3000, 10000}

// FactoryABI covers the single factory read used for pool discovery.
const FactoryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"}
		],
		"name": "getPool",
		"outputs": [
			{"internalType": "address", "name": "pool", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// PoolABI covers the pool state reads.
const PoolABI = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [
			{"internalType": "uint128", "name": "", "type": "uint128"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// PositionManagerABI covers position enumeration and the mint call the
// backend prepares for wallet submission.
const PositionManagerABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "uint256", "name": "index", "type": "uint256"}
		],
		"name": "tokenOfOwnerByIndex",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "positions",
		"outputs": [
			{"internalType": "uint96", "name": "nonce", "type": "uint96"},
			{"internalType": "address", "name": "operator", "type": "address"},
			{"internalType": "address", "name": "token0", "type": "address"},
			{"internalType": "address", "name": "token1", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"},
			{"internalType": "int24", "name": "tickLower", "type": "int24"},
			{"internalType": "int24", "name": "tickUpper", "type": "int24"},
			{"internalType": "uint128", "name": "liquidity", "type": "uint128"},
			{"internalType": "uint256", "name": "feeGrowthInside0LastX128", "type": "uint256"},
			{"internalType": "uint256", "name": "feeGrowthInside1LastX128", "type": "uint256"},
			{"internalType": "uint128", "name": "tokensOwed0", "type": "uint128"},
			{"internalType": "uint128", "name": "tokensOwed1", "type": "uint128"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "token0", "type": "address"},
					{"internalType": "address", "name": "token1", "type": "address"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "int24", "name": "tickLower", "type": "int24"},
					{"internalType": "int24", "name": "tickUpper", "type": "int24"},
					{"internalType": "uint256", "name": "amount0Desired", "type": "uint256"},
					{"internalType": "uint256", "name": "amount1Desired", "type": "uint256"},
					{"internalType": "uint256", "name": "amount0Min", "type": "uint256"},
					{"internalType": "uint256", "name": "amount1Min", "type": "uint256"},
					{"internalType": "address", "name": "recipient", "type": "address"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"}
				],
				"internalType": "struct INonfungiblePositionManager.MintParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "mint",
		"outputs": [
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"},
			{"internalType": "uint128", "name": "liquidity", "type": "uint128"},
			{"internalType": "uint256", "name": "amount0", "type": "uint256"},
			{"internalType": "uint256", "name": "amount1", "type": "uint256"}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// RouterABI covers the swap call prepared for wallet submission.
const RouterABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "address", "name": "recipient", "type": "address"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct ISwapRouter.ExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "exactInputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// q96 is the Q64.96 fixed-point scale used by sqrtPriceX96.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// zeroAddress marks "no pool" in factory responses.
var zeroAddress = "0x0000000000000000000000000000000000000000"
