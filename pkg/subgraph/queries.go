package subgraph

// GraphQL documents are kept as untyped string constants rather than a
// generated client: the query surface is small and fixed, and a codegen
// dependency would pull in a client the rest of this package doesn't use.

const QueryNetwork = `
query Network {
  networks(first: 1) {
    id
    oraclesConfigIpfsHash
    validatorsRoot
    validatorsIpfsHash
    validatorsNonce
    rewardsNonce
    totalRewards
    totalAssets
  }
}
`

const QueryPoolPositions = `
query PoolPositions($pool: String!, $last_id: String) {
  positions(
    first: 1000
    where: { pool: $pool, id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    owner
    tickLower { tickIdx }
    tickUpper { tickIdx }
    liquidity
  }
}
`

const QueryPoolState = `
query PoolState($pool: String!) {
  pool(id: $pool) {
    id
    tick
    sqrtPrice
    token0 { id }
    token1 { id }
  }
}
`

const QueryFinalizedBlock = `
query Meta {
  _meta {
    block { number hash }
    hasIndexingErrors
  }
}
`

const QueryValidatorDeposits = `
query ValidatorDeposits($operator: String!, $last_id: String) {
  deposits(
    first: 1000
    where: { operator: $operator, id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    publicKey
    withdrawalCredentials
    signature
    depositDataRoot
    amount
  }
}
`

const QueryLastValidatorVote = `
query LastValidatorVote {
  validatorsVotes(first: 1, orderBy: nonce, orderDirection: desc) {
    id
    nonce
    validatorsRoot
    validatorsIpfsHash
  }
}
`

const QueryTokenHolders = `
query TokenHolders($token: String!, $last_id: String) {
  tokenHolders(
    first: 1000
    where: { token: $token, id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    account
    balance
    updatedAtBlock
    previousPoints
  }
}
`

const QueryOperators = `
query Operators($last_id: String) {
  operators(first: 1000, where: { id_gt: $last_id }, orderBy: id, orderDirection: asc) {
    id
    address
    depositDataIndex
  }
}
`

const QueryLastUsedOperators = `
query LastUsedOperators {
  validatorRegistrations(first: 100, orderBy: blockNumber, orderDirection: desc) {
    operator { id }
  }
}
`

const QueryValidatorRegistered = `
query ValidatorRegistered($publicKey: String!) {
  validators(where: { publicKey: $publicKey }) {
    id
  }
}
`

const QueryDistributorRedirects = `
query DistributorRedirects($block_number: Int, $last_id: String) {
  distributorRedirects(
    first: 1000
    block: { number: $block_number }
    where: { id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    token { id }
  }
}
`

const QueryUniswapV3Pools = `
query UniswapV3Pools($block_number: Int, $last_id: String) {
  pools(
    first: 1000
    block: { number: $block_number }
    where: { id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    token0 { id }
    token1 { id }
  }
}
`
